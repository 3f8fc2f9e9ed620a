// services/hal/internal/platform/platform_host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"dht11-go/services/hal/internal/halcore"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the periph host drivers. It is safe to call repeatedly.
func Init() error {
	initOnce.Do(func() { _, initErr = host.Init() })
	return initErr
}

// DefaultPinFactory resolves pins through the periph registry using the
// chip's GPIO numbering ("4" is GPIO4 on a Raspberry Pi).
func DefaultPinFactory() halcore.PinFactory {
	return &hostPinFactory{pins: make(map[int]halcore.GPIOPin)}
}

type hostPinFactory struct {
	mu   sync.Mutex
	pins map[int]halcore.GPIOPin
}

func (f *hostPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	if n < 0 || Init() != nil {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[n]; ok {
		return p, true
	}
	pin := gpioreg.ByName(strconv.Itoa(n))
	if pin == nil {
		return nil, false
	}
	p := NewPin(pin)
	f.pins[n] = p
	return p, true
}

// NewPin adapts a periph pin to the HAL pin interface.
func NewPin(p gpio.PinIO) halcore.GPIOPin { return &periphPin{p: p} }

type periphPin struct {
	p gpio.PinIO
}

func (r *periphPin) ConfigureInput(pull halcore.Pull) error {
	return r.p.In(toPeriphPull(pull), gpio.NoEdge)
}

func (r *periphPin) ConfigureOutput(initial bool) error {
	return r.p.Out(gpio.Level(initial))
}

func (r *periphPin) Set(level bool) { _ = r.p.Out(gpio.Level(level)) }
func (r *periphPin) Get() bool      { return bool(r.p.Read()) }
func (r *periphPin) Number() int    { return r.p.Number() }

func toPeriphPull(p halcore.Pull) gpio.Pull {
	switch p {
	case halcore.PullUp:
		return gpio.PullUp
	case halcore.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

// DefaultTiming busy-waits on the monotonic clock. Sleeping would hand the
// thread back to the scheduler and overshoot microsecond windows.
func DefaultTiming() halcore.Timing { return hostTiming{} }

type hostTiming struct{}

func (hostTiming) DelayMicroseconds(us uint32) {
	deadline := time.Now().Add(time.Duration(us) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
}

// Critical pins the goroutine to its thread and pauses the collector for the
// duration of fn.
func (hostTiming) Critical(fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	gc := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gc)
	fn()
}
