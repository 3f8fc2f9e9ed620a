package dht11

import "strconv"

// ErrorKind classifies a failed Read.
type ErrorKind uint8

const (
	LineFault        ErrorKind = iota + 1 // the Line returned an error
	SensorAbsent                          // presence handshake timed out
	CaptureTimeout                        // a bit pulse was not seen in its window
	ChecksumMismatch                      // frame sum check failed
	OutOfRange                            // humidity outside [0, 100)
)

func (k ErrorKind) String() string {
	switch k {
	case LineFault:
		return "line fault"
	case SensorAbsent:
		return "sensor absent"
	case CaptureTimeout:
		return "capture timeout"
	case ChecksumMismatch:
		return "checksum mismatch"
	case OutOfRange:
		return "out of range"
	}
	return "unknown"
}

// Error is the only error type returned by Read. Observed and Computed are
// set for ChecksumMismatch, Humidity for OutOfRange, Err for LineFault.
type Error struct {
	Kind     ErrorKind
	Observed uint8
	Computed uint8
	Humidity float32
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ChecksumMismatch:
		return "dht11: checksum mismatch (observed 0x" + hex8(e.Observed) +
			", computed 0x" + hex8(e.Computed) + ")"
	case OutOfRange:
		return "dht11: humidity out of range: " +
			strconv.FormatFloat(float64(e.Humidity), 'f', 1, 32)
	case LineFault:
		if e.Err != nil {
			return "dht11: line fault: " + e.Err.Error()
		}
	}
	return "dht11: " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrChecksum)
// holds for every checksum failure regardless of the observed values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errors returned by the driver, usable with errors.Is.
var (
	ErrLine       = &Error{Kind: LineFault}
	ErrNotPresent = &Error{Kind: SensorAbsent}
	ErrTimeout    = &Error{Kind: CaptureTimeout}
	ErrChecksum   = &Error{Kind: ChecksumMismatch}
	ErrOutOfRange = &Error{Kind: OutOfRange}
)

func lineErr(err error) error {
	return &Error{Kind: LineFault, Err: err}
}

func hex8(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}
