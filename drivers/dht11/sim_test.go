package dht11

// Scripted single-wire bus. The simulated line and the delay share one
// virtual microsecond clock that only advances through DelayMicroseconds,
// so the waveform is sampled exactly as the driver would see it on
// hardware with ideal timing.

type segment struct {
	high bool
	us   uint32
}

type simLine struct {
	now      uint64
	released bool
	relAt    uint64
	wave     []segment // sensor waveform from the moment the host releases

	ticks int // number of 1 µs delays issued

	failSetLow  error
	failSetHigh error
	failRead    error
}

var (
	_ Line    = (*simLine)(nil)
	_ Delayer = (*simLine)(nil)
)

func (s *simLine) SetLow() error {
	if s.failSetLow != nil {
		return s.failSetLow
	}
	s.released = false
	return nil
}

func (s *simLine) SetHigh() error {
	if s.failSetHigh != nil {
		return s.failSetHigh
	}
	s.released = true
	s.relAt = s.now
	return nil
}

func (s *simLine) IsLow() (bool, error) {
	h, err := s.IsHigh()
	return !h, err
}

func (s *simLine) IsHigh() (bool, error) {
	if s.failRead != nil {
		return false, s.failRead
	}
	return s.level(), nil
}

func (s *simLine) DelayMicroseconds(us uint32) {
	if us == 1 {
		s.ticks++
	}
	s.now += uint64(us)
}

func (s *simLine) level() bool {
	if !s.released {
		return false
	}
	off := s.now - s.relAt
	for _, seg := range s.wave {
		if off < uint64(seg.us) {
			return seg.high
		}
		off -= uint64(seg.us)
	}
	return true // pull-up once the sensor lets go
}

// preamble covers the host's 25 µs release plus the sensor's response low.
func preamble() []segment {
	return []segment{{true, resetReleaseUS + 5}, {false, 50}}
}

// frameWave encodes f with the given high-pulse widths for 0 and 1 bits.
func frameWave(f Frame, zero, one uint32) []segment {
	w := preamble()
	for i := 0; i < frameBits; i++ {
		h := zero
		if f[i/8]&(1<<(7-i%8)) != 0 {
			h = one
		}
		w = append(w, segment{true, h}, segment{false, 50})
	}
	return w
}

func newSim(wave []segment) (*simLine, *Device) {
	s := &simLine{wave: wave}
	return s, New(s, s)
}

func withChecksum(b0, b1, b2, b3 byte) Frame {
	return Frame{b0, b1, b2, b3, b0 + b1 + b2 + b3}
}
