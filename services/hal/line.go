// services/hal/line.go
package hal

import "dht11-go/drivers/dht11"

// openDrainLine drives a single-wire bus through a plain GPIO. The line is
// pulled low by switching the pin to an output driving low, and released by
// switching back to an input, normally with the pull-up enabled.
type openDrainLine struct {
	pin  GPIOPin
	pull Pull
}

var _ dht11.Line = (*openDrainLine)(nil)

func newOpenDrainLine(pin GPIOPin, pull Pull) *openDrainLine {
	return &openDrainLine{pin: pin, pull: pull}
}

func (l *openDrainLine) SetLow() error { return l.pin.ConfigureOutput(false) }

func (l *openDrainLine) SetHigh() error { return l.pin.ConfigureInput(l.pull) }

func (l *openDrainLine) IsLow() (bool, error) { return !l.pin.Get(), nil }

func (l *openDrainLine) IsHigh() (bool, error) { return l.pin.Get(), nil }

// NewLine exposes the open-drain adaptor for programs that read a sensor
// directly without the service.
func NewLine(pin GPIOPin) dht11.Line { return newOpenDrainLine(pin, PullUp) }
