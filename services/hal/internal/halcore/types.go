// services/hal/internal/halcore/types.go
package halcore

import (
	"context"
	"errors"
	"time"
)

// Reading is one datum for one capability kind.
type Reading struct {
	Kind    string // "temperature", "humidity"
	Payload any    // fixed-point value struct
	TsMs    int64  // producer timestamp (ms)
}

// Sample is a batch collected together.
type Sample []Reading

// CapInfo describes one capability's retained info document.
type CapInfo struct {
	Kind string
	Info any
}

// Adaptor abstracts a concrete device/driver. Must not own goroutines or the bus.
type Adaptor interface {
	ID() string
	Capabilities() []CapInfo
	// Split-phase measurement cycle.
	Trigger(ctx context.Context) (collectAfter time.Duration, err error)
	Collect(ctx context.Context) (Sample, error)
	// Optional pass-through control for device-specific methods.
	Control(kind, method string, payload any) (result any, err error)
}

// WorkerConfig centralises timings and limits.
type WorkerConfig struct {
	TriggerTimeout time.Duration
	CollectTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	InputQueueSize int
}

// MeasureReq asks a worker to service an adaptor.
type MeasureReq struct {
	ID      string
	Adaptor Adaptor
	Prio    bool // true for "read_now"
}

// Result emitted by a worker.
type Result struct {
	ID     string
	Sample Sample
	Err    error
}

var (
	// ErrNotReady signals the worker to retry Collect after backoff.
	ErrNotReady = errors.New("not ready")
	// ErrUnsupported for adaptor Control pass-through.
	ErrUnsupported = errors.New("unsupported")
)

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIOPin is a plain digital pin. Configure calls report electrical or
// driver errors; Set and Get are assumed infallible once configured.
type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// PinFactory supplies GPIO pins by the configured number scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// ---- Timing ----

// Timing backs bit-banged protocols. DelayMicroseconds busy-waits;
// Critical runs fn with as little platform interference as it can arrange.
type Timing interface {
	DelayMicroseconds(us uint32)
	Critical(fn func())
}

// ParsePull accepts "up", "down", "none" and common spellings.
func ParsePull(s string) Pull {
	switch s {
	case "up", "UP", "pullup":
		return PullUp
	case "down", "DOWN", "pulldown":
		return PullDown
	default:
		return PullNone
	}
}

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}
