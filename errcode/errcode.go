package errcode

import (
	"context"
	"errors"

	"dht11-go/drivers/dht11"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	UnknownCap     Code = "unknown_capability"
	InvalidTopic   Code = "invalid_topic"

	UnknownPin Code = "unknown_pin"
	PinInUse   Code = "pin_in_use"
	Timeout    Code = "timeout"
	NotReady   Code = "not_ready"

	// Single-wire sensor failures.
	LineFault        Code = "line_fault"
	SensorAbsent     Code = "sensor_absent"
	CaptureTimeout   Code = "capture_timeout"
	ChecksumMismatch Code = "checksum_mismatch"
	OutOfRange       Code = "out_of_range"

	Error Code = "error" // generic fallback
)

// E wraps a Code when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches a code and operation to err. A nil err stays nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Msg: err.Error(), Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return MapDriverErr(err)
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	var de *dht11.Error
	if errors.As(err, &de) {
		switch de.Kind {
		case dht11.LineFault:
			return LineFault
		case dht11.SensorAbsent:
			return SensorAbsent
		case dht11.CaptureTimeout:
			return CaptureTimeout
		case dht11.ChecksumMismatch:
			return ChecksumMismatch
		case dht11.OutOfRange:
			return OutOfRange
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Error
}
