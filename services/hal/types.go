// services/hal/types.go
package hal

import "dht11-go/services/hal/internal/halcore"

// Re-exported so callers and tests outside internal/ can build fakes.
type (
	Reading      = halcore.Reading
	Sample       = halcore.Sample
	CapInfo      = halcore.CapInfo
	Adaptor      = halcore.Adaptor
	WorkerConfig = halcore.WorkerConfig
	MeasureReq   = halcore.MeasureReq
	Result       = halcore.Result

	Pull       = halcore.Pull
	GPIOPin    = halcore.GPIOPin
	PinFactory = halcore.PinFactory
	Timing     = halcore.Timing
)

const (
	PullNone = halcore.PullNone
	PullUp   = halcore.PullUp
	PullDown = halcore.PullDown
)

func ParsePull(s string) Pull { return halcore.ParsePull(s) }

var (
	ErrNotReady    = halcore.ErrNotReady
	ErrUnsupported = halcore.ErrUnsupported
)
