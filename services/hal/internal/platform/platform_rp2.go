// services/hal/internal/platform/platform_rp2.go
//go:build rp2040 || rp2350

package platform

import (
	"machine"
	"runtime/interrupt"
	"time"

	"tinygo.org/x/drivers/delay"

	"dht11-go/services/hal/internal/halcore"
)

// Init is a no-op on the MCU; pins need no driver registry.
func Init() error { return nil }

// DefaultPinFactory maps logical numbers directly to machine.Pin(n). This
// matches Pico/Pico 2 GP numbering.
func DefaultPinFactory() halcore.PinFactory { return rp2PinFactory{} }

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	// Constrain to RP2's user GPIOs (GP0..GP28).
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull halcore.Pull) error {
	var mode machine.PinMode
	switch pull {
	case halcore.PullUp:
		mode = machine.PinInputPullup
	case halcore.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }

// DefaultTiming uses the drivers' cycle-counted delay.
func DefaultTiming() halcore.Timing { return rp2Timing{} }

type rp2Timing struct{}

func (rp2Timing) DelayMicroseconds(us uint32) {
	delay.Sleep(time.Duration(us) * time.Microsecond)
}

// Critical masks interrupts so the 40-bit capture is not stretched by ISRs.
func (rp2Timing) Critical(fn func()) {
	mask := interrupt.Disable()
	defer interrupt.Restore(mask)
	fn()
}
