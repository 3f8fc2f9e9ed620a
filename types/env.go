package types

// ------------------------
// Temperature & humidity
// ------------------------

// Info details appear on hal/cap/env/<kind>/<name>/info (retained).

type TemperatureInfo struct {
	Sensor string  `json:"sensor"` // "dht11"
	Pin    int     `json:"pin"`    // single-wire data pin
	Unit   string  `json:"unit"`   // "C"
	Step   float32 `json:"step"`   // resolution in Unit
}

type HumidityInfo struct {
	Sensor string  `json:"sensor"`
	Pin    int     `json:"pin"`
	Unit   string  `json:"unit"` // "%RH"
	Step   float32 `json:"step"`
}

// Value payloads appear on hal/cap/env/<kind>/<name>/value.
// Fixed-point, small types to suit TinyGo.

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
}

type HumidityValue struct {
	// Hundredths of %RH (0..10000 for 0..100.00%).
	RHx100 uint16 `json:"rh_x100"`
}
