// internal/status/encode.go
package status

import "encoding/json"

type payload struct {
	Device         string `json:"device"`
	Health         string `json:"health"`
	HealthCode     uint16 `json:"health_code"`
	LastErrorCode  uint16 `json:"last_error_code"`
	SecondsInError uint16 `json:"seconds_in_error"`
}

// Encode converts a Snapshot into its published JSON form.
// No IO. No side effects.
func Encode(s Snapshot) []byte {
	b, _ := json.Marshal(payload{
		Device:         s.Device,
		Health:         HealthName(s.Health),
		HealthCode:     s.Health,
		LastErrorCode:  s.LastErrorCode,
		SecondsInError: s.SecondsInError,
	})
	return b
}
