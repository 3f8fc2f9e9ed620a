package dht11

import (
	"strconv"
)

// Frame is the 5-byte payload of one transaction:
// humidity int, humidity tenths, temperature int (bit 7 = sign),
// temperature tenths, checksum.
type Frame [5]byte

// Checksum returns the low byte of the sum of the four data bytes.
func (f Frame) Checksum() uint8 {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the transmitted checksum matches.
func (f Frame) Valid() bool { return f[4] == f.Checksum() }

// Reading validates the frame and derives physical values from it.
func (f Frame) Reading() (Reading, error) {
	if sum := f.Checksum(); f[4] != sum {
		return Reading{}, &Error{Kind: ChecksumMismatch, Observed: f[4], Computed: sum}
	}

	humidity := float32(f[0]) + float32(f[1])/10
	if humidity < 0 || humidity >= 100 {
		return Reading{}, &Error{Kind: OutOfRange, Humidity: humidity}
	}

	// Bit 7 of the integral byte is a sign flag, so it is masked off the
	// magnitude. Sensors that never set it decode the same either way.
	temperature := float32(f[2]&0x7F) + float32(f[3])/10
	if f[2]&0x80 != 0 {
		temperature = -temperature
	}

	return Reading{Humidity: humidity, Temperature: temperature}, nil
}

// Reading is one decoded measurement.
type Reading struct {
	Humidity    float32 // %RH, 0 <= h < 100
	Temperature float32 // °C
}

// String renders the reading as e.g. "27.0°C 50.0%RH".
func (r Reading) String() string {
	b := make([]byte, 0, 24)
	b = strconv.AppendFloat(b, float64(r.Temperature), 'f', 1, 32)
	b = append(b, "°C "...)
	b = strconv.AppendFloat(b, float64(r.Humidity), 'f', 1, 32)
	b = append(b, "%RH"...)
	return string(b)
}

// DeciCelsius returns the temperature in tenths of a degree, rounded.
func (r Reading) DeciCelsius() int16 {
	return int16(round(r.Temperature * 10))
}

// DeciRelHumidity returns the relative humidity in tenths of a percent, rounded.
func (r Reading) DeciRelHumidity() uint16 {
	return uint16(round(r.Humidity * 10))
}

func round(v float32) int32 {
	if v < 0 {
		return int32(v - 0.5)
	}
	return int32(v + 0.5)
}
