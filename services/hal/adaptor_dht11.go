// services/hal/adaptor_dht11.go
package hal

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"

	"dht11-go/drivers/dht11"
	"dht11-go/errcode"
	"dht11-go/types"
	"dht11-go/x/mathx"
)

const (
	// The DHT11 needs at least a second between conversions.
	dht11MinInterval = time.Second

	defaultPeriodMS = 2000
	minPeriodMS     = 1000
	maxPeriodMS     = 3_600_000

	// All bit-banged single-wire devices share one worker so their
	// critical sections never overlap.
	singleWireGroup = "single-wire"
)

func init() {
	RegisterBuilder("dht11", BuilderFunc(buildDHT11))
}

func buildDHT11(in BuildInput) (BuildOutput, error) {
	var p types.DHT11Params
	if err := decodeJSON(in.Params, &p); err != nil {
		return BuildOutput{}, errcode.Wrap(errcode.InvalidParams, "dht11", err)
	}
	pin, ok := in.Pins.ByNumber(p.Pin)
	if !ok {
		return BuildOutput{}, &errcode.E{C: errcode.UnknownPin, Op: "dht11", Msg: "gpio " + strconv.Itoa(p.Pin)}
	}
	if in.Claim != nil {
		if err := in.Claim(p.Pin); err != nil {
			return BuildOutput{}, err
		}
	}
	pull := PullUp
	if p.Pull != "" {
		pull = ParsePull(p.Pull)
	}
	// Idle state is released.
	if err := pin.ConfigureInput(pull); err != nil {
		return BuildOutput{}, errcode.Wrap(errcode.LineFault, "dht11", err)
	}

	guard := dht11MinInterval
	if p.MinIntervalMs > 0 {
		guard = time.Duration(p.MinIntervalMs) * time.Millisecond
	}
	period := p.PeriodMs
	if period == 0 {
		period = defaultPeriodMS
	}
	name := p.Name
	if name == "" {
		name = in.DeviceID
	}

	return BuildOutput{
		Adaptor:     newDHT11Adaptor(in.DeviceID, p.Pin, newOpenDrainLine(pin, pull), in.Timing, guard),
		Name:        name,
		Group:       singleWireGroup,
		SampleEvery: time.Duration(clampPeriodMS(period)) * time.Millisecond,
	}, nil
}

func clampPeriodMS(ms int) int { return mathx.Clamp(ms, minPeriodMS, maxPeriodMS) }

type dht11Adaptor struct {
	id     string
	pin    int
	dev    *dht11.Device
	timing Timing
	guard  time.Duration
	last   time.Time // start of the previous conversion
	now    func() time.Time

	// Good reading shared with Control, which runs on the service goroutine.
	snap atomic.Pointer[dht11.Reading]
}

func newDHT11Adaptor(id string, pin int, line dht11.Line, timing Timing, guard time.Duration) *dht11Adaptor {
	return &dht11Adaptor{
		id:     id,
		pin:    pin,
		dev:    dht11.New(line, timing),
		timing: timing,
		guard:  guard,
		now:    time.Now,
	}
}

func (a *dht11Adaptor) ID() string { return a.id }

func (a *dht11Adaptor) Capabilities() []CapInfo {
	return []CapInfo{
		{Kind: string(types.KindTemperature), Info: types.Info{
			SchemaVersion: 1,
			Driver:        "dht11",
			Detail:        types.TemperatureInfo{Sensor: "dht11", Pin: a.pin, Unit: "C", Step: 0.1},
		}},
		{Kind: string(types.KindHumidity), Info: types.Info{
			SchemaVersion: 1,
			Driver:        "dht11",
			Detail:        types.HumidityInfo{Sensor: "dht11", Pin: a.pin, Unit: "%RH", Step: 0.1},
		}},
	}
}

// Trigger reports how long the worker must wait before the sensor may be
// woken again. The conversion itself happens in Collect.
func (a *dht11Adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return a.remaining(a.now()), nil
}

func (a *dht11Adaptor) remaining(now time.Time) time.Duration {
	if a.last.IsZero() {
		return 0
	}
	if d := a.guard - now.Sub(a.last); d > 0 {
		return d
	}
	return 0
}

func (a *dht11Adaptor) Collect(ctx context.Context) (Sample, error) {
	now := a.now()
	if a.remaining(now) > 0 {
		return nil, ErrNotReady
	}
	a.last = now

	var err error
	a.timing.Critical(func() {
		err = a.dev.Update(drivers.Temperature | drivers.Humidity)
	})
	if err != nil {
		return nil, err
	}

	r := a.dev.Last()
	a.snap.Store(&r)
	ts := now.UnixMilli()
	return Sample{
		{Kind: string(types.KindTemperature), Payload: types.TemperatureValue{DeciC: r.DeciCelsius()}, TsMs: ts},
		{Kind: string(types.KindHumidity), Payload: types.HumidityValue{RHx100: mathx.Clamp(r.DeciRelHumidity()*10, 0, 10000)}, TsMs: ts},
	}, nil
}

func (a *dht11Adaptor) Control(kind, method string, payload any) (any, error) {
	switch method {
	case "last":
		// Most recent good reading without waking the sensor.
		var r dht11.Reading
		if p := a.snap.Load(); p != nil {
			r = *p
		}
		return map[string]any{"deci_c": r.DeciCelsius(), "rh_x100": r.DeciRelHumidity() * 10}, nil
	}
	return nil, ErrUnsupported
}
