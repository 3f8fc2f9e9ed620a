// services/hal/registry.go
package hal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BuildInput is provided to a device builder to construct an Adaptor.
type BuildInput struct {
	Ctx      context.Context
	Pins     PinFactory
	Timing   Timing
	DeviceID string
	Type     string
	Params   any
	// Claim reserves a GPIO for this device; it fails when another device
	// already holds the pin.
	Claim func(pin int) error
}

// BuildOutput is returned by a builder.
type BuildOutput struct {
	Adaptor     Adaptor
	Name        string        // public capability name
	Group       string        // worker bucket; adaptors in one group never run concurrently
	SampleEvery time.Duration // 0 if not a periodic producer
}

// Builder constructs an Adaptor from config and platform factories.
type Builder interface {
	Build(in BuildInput) (BuildOutput, error)
}

// BuilderFunc adapts a plain function to Builder.
type BuilderFunc func(in BuildInput) (BuildOutput, error)

func (f BuilderFunc) Build(in BuildInput) (BuildOutput, error) { return f(in) }

var (
	muBuilders sync.RWMutex
	builders   = map[string]Builder{}
)

// RegisterBuilder installs a builder for a given device type string.
// It panics on duplicate registration to catch mistakes at start-up.
func RegisterBuilder(deviceType string, b Builder) {
	muBuilders.Lock()
	defer muBuilders.Unlock()
	if deviceType == "" {
		panic("hal: empty device type for builder")
	}
	if _, exists := builders[deviceType]; exists {
		panic(fmt.Sprintf("hal: builder already registered for type %q", deviceType))
	}
	builders[deviceType] = b
}

// findBuilder looks up a registered builder by type.
func findBuilder(deviceType string) (Builder, bool) {
	muBuilders.RLock()
	defer muBuilders.RUnlock()
	b, ok := builders[deviceType]
	return b, ok
}
