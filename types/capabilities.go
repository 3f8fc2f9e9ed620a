package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
)

// DomainEnv is the bus domain for environmental sensors.
const DomainEnv = "env"
