package config

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v2"

	"dht11-go/bus"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key carrying the device ID whose embedded
// document should be published.
const CtxDeviceKey ctxKey = "device"

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
	// Raw overrides the embedded document when set (host agent -config).
	Raw []byte
	// OnError, if set, receives the publish error from Start.
	OnError func(error)
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// Publish resolves the document and publishes each top-level key as a
// retained config/<key> message.
func (s *ConfigService) Publish(ctx context.Context, conn *bus.Connection) error {
	raw := s.Raw
	if raw == nil {
		device, _ := ctx.Value(CtxDeviceKey).(string)
		if device == "" {
			return errors.New("config: missing device ID in context")
		}
		var ok bool
		raw, ok = EmbeddedConfigLookup(device)
		if !ok || len(raw) == 0 {
			return errors.New("config: no embedded config for device: " + device)
		}
	}
	doc, err := Parse(raw)
	if err != nil {
		return err
	}
	for k, v := range doc {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	return nil
}

// Start launches the publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.Publish(ctx, conn); err != nil && s.OnError != nil {
			s.OnError(err)
		}
	}()
}

// Parse decodes a YAML (or JSON) document whose root is a mapping.
func Parse(raw []byte) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	m, ok := normalize(v).(map[string]any)
	if !ok {
		return nil, errors.New("config: document root is not a mapping")
	}
	return m, nil
}

// normalize rewrites yaml.v2's map[interface{}]interface{} into
// map[string]any so payloads survive JSON encoding downstream.
func normalize(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case map[string]any:
		for k, val := range x {
			x[k] = normalize(val)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	default:
		return v
	}
}
