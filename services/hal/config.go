// services/hal/config.go
package hal

import "encoding/json"

// decodeJSON accepts raw JSON, or any JSON-shaped value (maps, structs)
// which is marshalled and decoded into T.
func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

// encodeSig is a stable rendering of device params used to detect changes.
// encoding/json sorts map keys.
func encodeSig(params any) string {
	b, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(b)
}

// parsePeriodMS reads {"period_ms": n} or a bare number. Zero means invalid.
func parsePeriodMS(p any) int {
	switch v := p.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	var req struct {
		PeriodMs int `json:"period_ms"`
	}
	if decodeJSON(p, &req) != nil {
		return 0
	}
	return req.PeriodMs
}
