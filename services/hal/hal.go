// services/hal/hal.go
package hal

import (
	"context"
	"errors"
	"strconv"
	"time"

	"dht11-go/bus"
	"dht11-go/errcode"
	"dht11-go/services/hal/internal/platform"
	"dht11-go/types"
	"dht11-go/x/timex"
)

// -----------------------------------------------------------------------------
// Entry points
// -----------------------------------------------------------------------------

// Run starts the HAL with the platform's pins and timing. It blocks until ctx
// is cancelled.
func Run(ctx context.Context, conn *bus.Connection) {
	RunWith(ctx, conn, platform.DefaultPinFactory(), platform.DefaultTiming())
}

// RunWith starts the HAL with injected pins and timing.
func RunWith(ctx context.Context, conn *bus.Connection, pins PinFactory, timing Timing) {
	s := &service{
		conn:     conn,
		pins:     pins,
		timing:   timing,
		workers:  map[string]MeasurementWorker{},
		devices:  map[string]*devEntry{},
		capToDev: map[capKey]string{},
		claimed:  map[int]string{},
		results:  make(chan Result, 32),
	}
	s.loop(ctx)
}

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

type devEntry struct {
	adaptor Adaptor
	typ     string
	sig     string // encoded params; a change forces a rebuild
	name    string
	group   string
	kinds   []string
	period  time.Duration
	nextDue time.Time
}

type capKey struct {
	kind string
	name string
}

type service struct {
	conn   *bus.Connection
	pins   PinFactory
	timing Timing

	workers  map[string]MeasurementWorker
	devices  map[string]*devEntry
	capToDev map[capKey]string
	claimed  map[int]string // gpio -> device id

	results chan Result
	timer   *time.Timer
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.T("config", "hal"))
	ctrlSub := s.conn.Subscribe(bus.T("hal", "cap", types.DomainEnv, "+", "+", "control", "+"))
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", errcode.OK)

	s.timer = time.NewTimer(idleWait)
	defer s.timer.Stop()

	for {
		if next := s.earliestDue(); next.IsZero() {
			resetTimer(s.timer, idleWait)
		} else {
			resetTimer(s.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", errcode.OK)
			return

		case msg := <-cfgSub.Channel():
			var cfg types.HALConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", errcode.InvalidPayload)
				continue
			}
			if err := s.applyConfig(ctx, cfg); err != nil {
				s.publishState("ready", "configured_with_errors", errcode.Of(err))
				continue
			}
			s.publishState("ready", "configured", errcode.OK)

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case <-s.timer.C:
			now := time.Now()
			for id, ent := range s.devices {
				if ent.period > 0 && !now.Before(ent.nextDue) {
					s.submitMeasure(id, false)
					ent.nextDue = now.Add(ent.period)
				}
			}

		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

// handleControl serves hal/cap/env/<kind>/<name>/control/<verb>.
func (s *service) handleControl(msg *bus.Message) {
	if len(msg.Topic) != 7 {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	kind, _ := msg.Topic[3].(string)
	name, _ := msg.Topic[4].(string)
	verb, _ := msg.Topic[6].(string)
	devID, ok := s.capToDev[capKey{kind: kind, name: name}]
	if !ok {
		s.replyErr(msg, errcode.UnknownCap)
		return
	}
	ent := s.devices[devID]

	switch verb {
	case "read_now":
		if !s.submitMeasure(devID, true) {
			s.replyErr(msg, errcode.Busy)
			return
		}
		if ent.period > 0 {
			ent.nextDue = time.Now().Add(ent.period)
		}
		s.replyOK(msg, nil)

	case "set_rate":
		ms := parsePeriodMS(msg.Payload)
		if ms <= 0 {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		ms = clampPeriodMS(ms)
		ent.period = time.Duration(ms) * time.Millisecond
		ent.nextDue = time.Now().Add(ent.period)
		s.replyOK(msg, map[string]any{"period_ms": ms})

	default:
		res, err := ent.adaptor.Control(kind, verb, msg.Payload)
		if err != nil {
			if errors.Is(err, ErrUnsupported) {
				s.replyErr(msg, errcode.Unsupported)
			} else {
				s.replyErr(msg, errcode.Of(err))
			}
			return
		}
		s.replyOK(msg, map[string]any{"result": res})
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// applyConfig reconciles running devices with cfg. Devices that fail to build
// are skipped; the first failure is returned once the rest are applied.
func (s *service) applyConfig(ctx context.Context, cfg types.HALConfig) error {
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	seen := map[string]struct{}{}
	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		if d.ID == "" {
			keep(&errcode.E{C: errcode.InvalidParams, Op: "hal config", Msg: "device without id"})
			continue
		}
		seen[d.ID] = struct{}{}

		sig := encodeSig(d.Params)
		if ent, ok := s.devices[d.ID]; ok {
			if ent.typ == d.Type && ent.sig == sig {
				continue
			}
			s.teardown(d.ID)
		}

		b, ok := findBuilder(d.Type)
		if !ok {
			keep(&errcode.E{C: errcode.Unsupported, Op: "hal config", Msg: "device type " + strconv.Quote(d.Type)})
			continue
		}
		out, err := b.Build(BuildInput{
			Ctx:      ctx,
			Pins:     s.pins,
			Timing:   s.timing,
			DeviceID: d.ID,
			Type:     d.Type,
			Params:   d.Params,
			Claim:    func(pin int) error { return s.claim(d.ID, pin) },
		})
		if err == nil {
			err = s.checkNames(out)
		}
		if err != nil {
			s.release(d.ID)
			keep(err)
			continue
		}
		s.install(ctx, d, sig, out)
	}

	for id := range s.devices {
		if _, ok := seen[id]; !ok {
			s.teardown(id)
		}
	}
	return firstErr
}

func (s *service) install(ctx context.Context, d *types.HALDevice, sig string, out BuildOutput) {
	if _, ok := s.workers[out.Group]; !ok {
		w := NewMeasurementWorker(WorkerConfig{}, s.results)
		w.Start(ctx)
		s.workers[out.Group] = w
	}

	ent := &devEntry{
		adaptor: out.Adaptor,
		typ:     d.Type,
		sig:     sig,
		name:    out.Name,
		group:   out.Group,
		period:  out.SampleEvery,
	}
	now := timex.NowMs()
	for _, ci := range out.Adaptor.Capabilities() {
		ent.kinds = append(ent.kinds, ci.Kind)
		s.capToDev[capKey{kind: ci.Kind, name: out.Name}] = d.ID
		s.pubRet(capTopic(ci.Kind, out.Name, "info"), ci.Info)
		s.pubRet(capTopic(ci.Kind, out.Name, "status"), types.CapabilityStatus{Link: types.LinkUp, TS: now})
	}
	if ent.period > 0 {
		ent.nextDue = time.Now().Add(200 * time.Millisecond)
	}
	s.devices[d.ID] = ent
}

func (s *service) teardown(id string) {
	ent, ok := s.devices[id]
	if !ok {
		return
	}
	now := timex.NowMs()
	for _, kind := range ent.kinds {
		s.pubRet(capTopic(kind, ent.name, "info"), nil)
		s.pubRet(capTopic(kind, ent.name, "status"), types.CapabilityStatus{Link: types.LinkDown, TS: now})
		delete(s.capToDev, capKey{kind: kind, name: ent.name})
	}
	s.release(id)
	delete(s.devices, id)
}

func (s *service) checkNames(out BuildOutput) error {
	for _, ci := range out.Adaptor.Capabilities() {
		if _, taken := s.capToDev[capKey{kind: ci.Kind, name: out.Name}]; taken {
			return &errcode.E{C: errcode.InvalidParams, Op: "hal config", Msg: "duplicate capability " + ci.Kind + "/" + out.Name}
		}
	}
	return nil
}

func (s *service) claim(devID string, pin int) error {
	if owner, ok := s.claimed[pin]; ok && owner != devID {
		return &errcode.E{C: errcode.PinInUse, Op: "hal config", Msg: "gpio " + strconv.Itoa(pin) + " held by " + owner}
	}
	s.claimed[pin] = devID
	return nil
}

func (s *service) release(devID string) {
	for pin, owner := range s.claimed {
		if owner == devID {
			delete(s.claimed, pin)
		}
	}
}

// -----------------------------------------------------------------------------
// Scheduling and results
// -----------------------------------------------------------------------------

func (s *service) submitMeasure(devID string, prio bool) bool {
	ent, ok := s.devices[devID]
	if !ok {
		return false
	}
	w := s.workers[ent.group]
	if w == nil {
		return false
	}
	return w.Submit(MeasureReq{ID: devID, Adaptor: ent.adaptor, Prio: prio})
}

func (s *service) earliestDue() time.Time {
	var min time.Time
	for _, ent := range s.devices {
		if ent.period <= 0 || ent.nextDue.IsZero() {
			continue
		}
		if min.IsZero() || ent.nextDue.Before(min) {
			min = ent.nextDue
		}
	}
	return min
}

// handleResult publishes values, or a degraded status carrying the error
// code. Failed reads are not retried; the next scheduled sample is the retry.
func (s *service) handleResult(r Result) {
	ent, ok := s.devices[r.ID]
	if !ok {
		return
	}
	now := timex.NowMs()

	if r.Err != nil {
		st := types.CapabilityStatus{Link: types.LinkDegraded, TS: now, Error: string(codeOf(r.Err))}
		for _, kind := range ent.kinds {
			s.pubRet(capTopic(kind, ent.name, "status"), st)
		}
		return
	}
	for _, rd := range r.Sample {
		s.conn.Publish(s.conn.NewMessage(capTopic(rd.Kind, ent.name, "value"), rd.Payload, false))
		s.pubRet(capTopic(rd.Kind, ent.name, "status"), types.CapabilityStatus{Link: types.LinkUp, TS: now})
	}
}

// codeOf maps worker and driver errors to bus codes.
func codeOf(err error) errcode.Code {
	if errors.Is(err, ErrNotReady) {
		return errcode.NotReady
	}
	return errcode.Of(err)
}

// -----------------------------------------------------------------------------
// Publishing helpers
// -----------------------------------------------------------------------------

func (s *service) publishState(level, status string, code errcode.Code) {
	st := types.HALState{Level: level, Status: status, TS: timex.NowMs()}
	if code != errcode.OK {
		st.Error = string(code)
	}
	s.pubRet(bus.T("hal", "state"), st)
}

func (s *service) replyOK(req *bus.Message, extra map[string]any) {
	if len(req.ReplyTo) == 0 {
		return
	}
	if len(extra) == 0 {
		s.conn.Reply(req, types.OKReply{OK: true}, false)
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *service) replyErr(req *bus.Message, code errcode.Code) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: string(code)}, false)
}

// capTopic builds hal/cap/env/<kind>/<name>/<leaf>.
func capTopic(kind, name, leaf string) bus.Topic {
	return bus.T("hal", "cap", types.DomainEnv, kind, name, leaf)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

// Platform access for programs that drive a sensor without the service.

// PlatformInit prepares the platform GPIO drivers.
func PlatformInit() error { return platform.Init() }

// DefaultPins returns the platform pin factory.
func DefaultPins() PinFactory { return platform.DefaultPinFactory() }

// DefaultTiming returns the platform delay and critical-section provider.
func DefaultTiming() Timing { return platform.DefaultTiming() }
