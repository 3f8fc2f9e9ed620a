package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw YAML bytes for that device
// -----------------------------------------------------------------------------

// Pico: DHT11 data on GP15 with the on-chip pull-up.
const cfgPico = `
hal:
  devices:
    - id: dht11-0
      type: dht11
      params:
        pin: 15
        name: dht0
        period_ms: 2000
heartbeat:
  interval: 10
`

// Raspberry Pi host: DHT11 data on GPIO4.
const cfgHost = `
hal:
  devices:
    - id: dht11-0
      type: dht11
      params:
        pin: 4
        name: dht0
        period_ms: 5000
heartbeat:
  interval: 60
`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}
