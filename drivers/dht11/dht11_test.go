package dht11

import (
	"errors"
	"testing"

	"tinygo.org/x/drivers"
)

func TestRead_EndToEnd(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		temp  float32
		hum   float32
	}{
		{"positive", Frame{0x32, 0x00, 0x1B, 0x00, 0x4D}, 27.0, 50.0},
		{"negative", withChecksum(0x32, 0x00, 0x9B, 0x00), -27.0, 50.0},
		{"fractions", withChecksum(0x2D, 0x03, 0x16, 0x05), 22.5, 45.3},
		{"zero", withChecksum(0, 0, 0, 0), 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, d := newSim(frameWave(tc.frame, 26, 40))
			r, err := d.Read()
			if err != nil {
				t.Fatalf("read error: %v", err)
			}
			if r.Temperature != tc.temp || r.Humidity != tc.hum {
				t.Fatalf("got %v, want %.1f°C %.1f%%RH", r, tc.temp, tc.hum)
			}
		})
	}
}

func TestRead_ResetSequence(t *testing.T) {
	s, d := newSim(frameWave(Frame{0x32, 0x00, 0x1B, 0x00, 0x4D}, 26, 40))
	if _, err := d.Read(); err != nil {
		t.Fatalf("read error: %v", err)
	}
	// 3000 µs low + 25 µs release precede the polled part of the transaction.
	if s.relAt != resetLowUS {
		t.Fatalf("line released at %dµs, want %d", s.relAt, resetLowUS)
	}
	if !s.released {
		t.Fatal("line left driven low after read")
	}
}

func TestRead_BitThreshold(t *testing.T) {
	// Widths classified as 1 must decode {1,0,1,0,2}; widths classified as 0
	// are used for every pulse and must decode to the all-zero frame.
	tests := []struct {
		width uint32
		one   bool
	}{
		{26, false},
		{30, false},
		{31, true},
		{45, true},
	}
	for _, tc := range tests {
		var wave []segment
		if tc.one {
			wave = frameWave(withChecksum(0x01, 0x00, 0x01, 0x00), 20, tc.width)
		} else {
			wave = frameWave(Frame{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, tc.width, tc.width)
		}
		_, d := newSim(wave)
		r, err := d.Read()
		if tc.one {
			if err != nil {
				t.Fatalf("width %d: read error: %v", tc.width, err)
			}
			if r.Humidity != 1 || r.Temperature != 1 {
				t.Fatalf("width %d: got %v", tc.width, r)
			}
			continue
		}
		if err != nil {
			t.Fatalf("width %d: read error: %v", tc.width, err)
		}
		if r != (Reading{}) {
			t.Fatalf("width %d: pulses decoded as 1 bits: %v", tc.width, r)
		}
	}
}

func TestRead_NotPresent(t *testing.T) {
	tests := []struct {
		name string
		wave []segment
	}{
		// Pull-up only: the sensor never answers with a low.
		{"no response low", nil},
		// Line held low: never rises after release.
		{"stuck low", []segment{{false, 1 << 20}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, d := newSim(tc.wave)
			_, err := d.Read()
			if !errors.Is(err, ErrNotPresent) {
				t.Fatalf("want ErrNotPresent, got %v", err)
			}
			if s.ticks != presenceUS {
				t.Fatalf("waited %d ticks, want exactly %d", s.ticks, presenceUS)
			}
		})
	}
}

func TestRead_CaptureTimeout(t *testing.T) {
	// Response completes, first data bit rises and never falls.
	wave := append(preamble(), segment{true, 1 << 20})
	s, d := newSim(wave)
	_, err := d.Read()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
	// 5 ticks to see the response low, 50 for the low to end, 55 timeout.
	if want := 5 + 50 + bitWindowUS; s.ticks != want {
		t.Fatalf("ticks = %d, want %d", s.ticks, want)
	}
}

func TestRead_ErrorsAreNotSentinels(t *testing.T) {
	_, d := newSim(nil)
	_, err := d.Read()
	var de *Error
	if !errors.As(err, &de) || de == ErrNotPresent {
		t.Fatalf("Read returned the package sentinel: %#v", err)
	}
	de.Kind = OutOfRange
	if ErrNotPresent.Kind != SensorAbsent {
		t.Fatal("mutating a returned error changed ErrNotPresent")
	}

	_, d = newSim(append(preamble(), segment{true, 1 << 20}))
	_, err = d.Read()
	if !errors.As(err, &de) || de == ErrTimeout {
		t.Fatalf("Read returned the package sentinel: %#v", err)
	}
}

func TestRead_TruncatedFrame(t *testing.T) {
	full := frameWave(Frame{0x32, 0x00, 0x1B, 0x00, 0x4D}, 26, 40)
	// Drop the last 10 bit cells; the pull-up then holds the line high.
	_, d := newSim(full[:len(full)-20])
	if _, err := d.Read(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

func TestRead_ChecksumMismatch(t *testing.T) {
	_, d := newSim(frameWave(Frame{0x32, 0x00, 0x1B, 0x00, 0x4E}, 26, 40))
	_, err := d.Read()
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("want ErrChecksum, got %v", err)
	}
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("want *Error, got %T", err)
	}
	if de.Observed != 0x4E || de.Computed != 0x4D {
		t.Fatalf("observed/computed = %#x/%#x, want 0x4e/0x4d", de.Observed, de.Computed)
	}
}

func TestRead_LineFault(t *testing.T) {
	boom := errors.New("gpio: bus error")
	tests := []struct {
		name string
		set  func(*simLine)
	}{
		{"set low", func(s *simLine) { s.failSetLow = boom }},
		{"set high", func(s *simLine) { s.failSetHigh = boom }},
		{"sample", func(s *simLine) { s.failRead = boom }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, d := newSim(frameWave(Frame{0x32, 0x00, 0x1B, 0x00, 0x4D}, 26, 40))
			tc.set(s)
			_, err := d.Read()
			if !errors.Is(err, ErrLine) {
				t.Fatalf("want ErrLine, got %v", err)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("capability error not wrapped: %v", err)
			}
			if s.ticks != 0 {
				t.Fatalf("polled %d ticks after a line fault", s.ticks)
			}
		})
	}
}

func TestWaitLevel_TimeoutIsExact(t *testing.T) {
	for _, timeout := range []uint32{1, bitWindowUS, presenceUS} {
		s, d := newSim([]segment{{false, 1 << 20}})
		s.released = true

		_, err := d.waitLevel(timeout, true, CaptureTimeout)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("timeout %d: got %v", timeout, err)
		}
		if s.ticks != int(timeout) || s.now != uint64(timeout) {
			t.Fatalf("timeout %d: ticks=%d now=%d", timeout, s.ticks, s.now)
		}
	}
}

func TestWaitLevel_ReturnsElapsedTicks(t *testing.T) {
	s, d := newSim([]segment{{true, 17}, {false, 100}})
	s.released = true

	n, err := d.waitLevel(bitWindowUS, false, CaptureTimeout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 17 {
		t.Fatalf("elapsed = %d, want 17", n)
	}
}

func TestUpdate_CachesReading(t *testing.T) {
	s, d := newSim(frameWave(withChecksum(0x2D, 0x03, 0x16, 0x05), 26, 40))

	if err := d.Update(drivers.Pressure); err != nil {
		t.Fatalf("update(pressure): %v", err)
	}
	if s.now != 0 {
		t.Fatal("update touched the bus for an unsupported measurement")
	}

	if err := d.Update(drivers.Temperature | drivers.Humidity); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := d.Temperature(); got != 22500 {
		t.Fatalf("temperature = %d m°C, want 22500", got)
	}
	if got := d.Humidity(); got != 4530 {
		t.Fatalf("humidity = %d, want 4530", got)
	}

	// A failing update keeps the previous reading.
	s.failRead = errors.New("gone")
	if err := d.Update(drivers.Temperature); err == nil {
		t.Fatal("expected error")
	}
	if d.Last().Temperature != 22.5 {
		t.Fatalf("cache overwritten: %v", d.Last())
	}
}

func TestDelayFunc(t *testing.T) {
	var total uint32
	var dl Delayer = DelayFunc(func(us uint32) { total += us })
	dl.DelayMicroseconds(3)
	dl.DelayMicroseconds(4)
	if total != 7 {
		t.Fatalf("total = %d", total)
	}
}
