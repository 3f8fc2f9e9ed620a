// Package dht11 provides a driver for the DHT11 temperature/humidity sensor
// on its single-wire bus.
//
//	d := dht11.New(line, delay)
//	r, err := d.Read() // reset, presence, 40 bits, checksum
//
// The driver owns no hardware. The caller supplies a bidirectional Line that
// is already wired open-drain (or emulates it) and a microsecond Delayer.
// Read busy-polls the line once per microsecond; it does not yield, spawn
// goroutines or retry. A read takes about 3 ms of reset plus at most ~4.6 ms
// of polling.
//
// NOTE: the 30-tick bit threshold assumes one line sample per DelayMicroseconds(1)
// call. Do not change the polling granularity without revisiting it.
package dht11

import (
	"tinygo.org/x/drivers"
)

// Protocol timings in microseconds.
const (
	resetLowUS     = 3000
	resetReleaseUS = 25
	presenceUS     = 85
	bitWindowUS    = 55

	// High pulses longer than this are 1 bits (~26-28 µs for 0, ~70 µs for 1).
	bitThreshold = 30

	frameBits = 40
)

// Line is a bidirectional digital line. SetHigh releases the bus on an
// open-drain pin.
type Line interface {
	SetLow() error
	SetHigh() error
	IsLow() (bool, error)
	IsHigh() (bool, error)
}

// Delayer blocks for the given number of microseconds.
type Delayer interface {
	DelayMicroseconds(us uint32)
}

// DelayFunc adapts a function to Delayer.
type DelayFunc func(us uint32)

func (f DelayFunc) DelayMicroseconds(us uint32) { f(us) }

// Device is a DHT11 on one line. It is not safe for concurrent use.
type Device struct {
	line  Line
	delay Delayer

	last Reading // last successful Update
}

// New creates a Device. It does not touch the line.
func New(line Line, delay Delayer) *Device {
	return &Device{line: line, delay: delay}
}

// Read performs one complete transaction and returns the decoded reading or
// the first error encountered.
func (d *Device) Read() (Reading, error) {
	var f Frame

	// Wake the sensor, then hand the bus over.
	if err := d.line.SetLow(); err != nil {
		return Reading{}, lineErr(err)
	}
	d.delay.DelayMicroseconds(resetLowUS)
	if err := d.line.SetHigh(); err != nil {
		return Reading{}, lineErr(err)
	}
	d.delay.DelayMicroseconds(resetReleaseUS)

	if _, err := d.waitLevel(presenceUS, true, SensorAbsent); err != nil {
		return Reading{}, err
	}
	if _, err := d.waitLevel(presenceUS, false, SensorAbsent); err != nil {
		return Reading{}, err
	}

	for bit := 0; bit < frameBits; bit++ {
		if _, err := d.waitLevel(bitWindowUS, true, CaptureTimeout); err != nil {
			return Reading{}, err
		}
		elapsed, err := d.waitLevel(bitWindowUS, false, CaptureTimeout)
		if err != nil {
			return Reading{}, err
		}
		if elapsed > bitThreshold {
			f[bit/8] |= 1 << (7 - bit%8)
		}
	}

	return f.Reading()
}

// waitLevel samples the line until it reads high (or low), returning the
// number of 1 µs ticks that elapsed first. After timeoutUS ticks without a
// match it returns a fresh *Error of the given kind.
func (d *Device) waitLevel(timeoutUS uint32, high bool, kind ErrorKind) (uint32, error) {
	for i := uint32(0); i < timeoutUS; i++ {
		var ok bool
		var err error
		if high {
			ok, err = d.line.IsHigh()
		} else {
			ok, err = d.line.IsLow()
		}
		if err != nil {
			return 0, lineErr(err)
		}
		if ok {
			return i, nil
		}
		d.delay.DelayMicroseconds(1)
	}
	return 0, &Error{Kind: kind}
}

// ---- tinygo drivers.Sensor ----

// Ensure Device satisfies the TinyGo sensor contract at compile time.
var _ drivers.Sensor = (*Device)(nil)

// Update reads the sensor when which asks for temperature or humidity and
// caches the result. The cache is left untouched on error.
func (d *Device) Update(which drivers.Measurement) error {
	if which&(drivers.Temperature|drivers.Humidity) == 0 {
		return nil
	}
	r, err := d.Read()
	if err != nil {
		return err
	}
	d.last = r
	return nil
}

// Last returns the reading cached by the last successful Update.
func (d *Device) Last() Reading { return d.last }

// Temperature returns the cached temperature in milli-°C.
func (d *Device) Temperature() int32 { return int32(d.last.DeciCelsius()) * 100 }

// Humidity returns the cached relative humidity in hundredths of a percent.
func (d *Device) Humidity() int32 { return int32(d.last.DeciRelHumidity()) * 10 }
