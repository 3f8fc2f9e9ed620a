package hal

import "sync"

// simSensor is a DHT11 on a virtual microsecond clock. It serves as both the
// GPIO and the Timing so the driver samples an ideal waveform.
type simSensor struct {
	mu       sync.Mutex
	num      int
	now      uint64
	released bool
	relAt    uint64
	frame    [5]byte
	absent   bool
	critical int
}

var (
	_ GPIOPin = (*simSensor)(nil)
	_ Timing  = (*simSensor)(nil)
)

func newSimSensor(num int, b0, b1, b2, b3 byte) *simSensor {
	s := &simSensor{num: num}
	s.setFrame(b0, b1, b2, b3)
	return s
}

func (s *simSensor) setFrame(b0, b1, b2, b3 byte) {
	s.mu.Lock()
	s.frame = [5]byte{b0, b1, b2, b3, b0 + b1 + b2 + b3}
	s.mu.Unlock()
}

func (s *simSensor) setAbsent(v bool) {
	s.mu.Lock()
	s.absent = v
	s.mu.Unlock()
}

func (s *simSensor) criticalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.critical
}

func (s *simSensor) ConfigureInput(Pull) error {
	s.mu.Lock()
	s.released, s.relAt = true, s.now
	s.mu.Unlock()
	return nil
}

func (s *simSensor) ConfigureOutput(initial bool) error {
	s.mu.Lock()
	s.released = initial
	s.mu.Unlock()
	return nil
}

func (s *simSensor) Set(bool)    {}
func (s *simSensor) Number() int { return s.num }

func (s *simSensor) Get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.released {
		return false
	}
	if s.absent {
		return true
	}
	off := s.now - s.relAt
	for _, seg := range s.wave() {
		if off < seg.us {
			return seg.high
		}
		off -= seg.us
	}
	return true
}

func (s *simSensor) DelayMicroseconds(us uint32) {
	s.mu.Lock()
	s.now += uint64(us)
	s.mu.Unlock()
}

func (s *simSensor) Critical(fn func()) {
	s.mu.Lock()
	s.critical++
	s.mu.Unlock()
	fn()
}

type simSeg struct {
	high bool
	us   uint64
}

// wave is the sensor's reply from the moment the host releases the line:
// release high, response low, then 40 bits of high pulses (26 µs for 0,
// 45 µs for 1) each followed by 50 µs low.
func (s *simSensor) wave() []simSeg {
	w := []simSeg{{true, 30}, {false, 50}}
	for i := 0; i < 40; i++ {
		h := uint64(26)
		if s.frame[i/8]&(1<<(7-i%8)) != 0 {
			h = 45
		}
		w = append(w, simSeg{true, h}, simSeg{false, 50})
	}
	return w
}

// simPins is a PinFactory over fixed pins.
type simPins map[int]GPIOPin

func (f simPins) ByNumber(n int) (GPIOPin, bool) {
	p, ok := f[n]
	return p, ok
}
