package types

// ------------------------
// Common HAL state (retained)
// ------------------------

type HALState struct {
	Level  string `json:"level"`           // "idle", "ready", "error", "stopped"
	Status string `json:"status"`          // freeform short code
	Error  string `json:"error,omitempty"` // machine-readable short code
	TS     int64  `json:"ts_ms"`
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TS    int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // errcode value
}

// ------------------------
// HAL configuration
// ------------------------

type HALConfig struct {
	Devices []HALDevice `json:"devices" yaml:"devices"`
}

type HALDevice struct {
	ID     string `json:"id" yaml:"id"`         // logical device id
	Type   string `json:"type" yaml:"type"`     // e.g. "dht11"
	Params any    `json:"params" yaml:"params"` // device-specific params (JSON-like)
}

// DHT11Params configures one single-wire DHT11.
type DHT11Params struct {
	Pin           int    `json:"pin" yaml:"pin"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`                       // capability name; defaults to device id
	PeriodMs      int    `json:"period_ms,omitempty" yaml:"period_ms,omitempty"`             // sampling period; 0 => default
	MinIntervalMs int    `json:"min_interval_ms,omitempty" yaml:"min_interval_ms,omitempty"` // guard between conversions
	Pull          string `json:"pull,omitempty" yaml:"pull,omitempty"`                       // "up" (default) or "none" with an external resistor
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ------------------------
// Info envelope (retained)
// ------------------------

type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"` // one of *Info types
}
