package hal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dht11-go/types"
)

// fakeAdaptor returns ErrNotReady for the first collectsTill Collect calls,
// then succeeds.
type fakeAdaptor struct {
	id           string
	after        time.Duration
	collectsTill atomic.Int32
	failWith     error
	triggers     atomic.Int32
	collects     atomic.Int32
}

func (f *fakeAdaptor) ID() string              { return f.id }
func (f *fakeAdaptor) Capabilities() []CapInfo { return nil }
func (f *fakeAdaptor) Trigger(ctx context.Context) (time.Duration, error) {
	f.triggers.Add(1)
	return f.after, nil
}
func (f *fakeAdaptor) Collect(ctx context.Context) (Sample, error) {
	n := f.collects.Add(1)
	if n <= f.collectsTill.Load() {
		if f.failWith != nil {
			return nil, f.failWith
		}
		return nil, ErrNotReady
	}
	ts := time.Now().UnixMilli()
	return Sample{
		{Kind: "temperature", Payload: types.TemperatureValue{DeciC: 250}, TsMs: ts},
		{Kind: "humidity", Payload: types.HumidityValue{RHx100: 5500}, TsMs: ts},
	}, nil
}
func (f *fakeAdaptor) Control(kind, method string, payload any) (any, error) {
	return nil, ErrUnsupported
}

func startWorker(t *testing.T, cfg WorkerConfig) (*measureWorker, chan Result) {
	t.Helper()
	sink := make(chan Result, 4)
	w := NewWorker(cfg, sink)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.Start(ctx)
	return w, sink
}

func TestWorker_SuccessWithRetries(t *testing.T) {
	w, results := startWorker(t, WorkerConfig{
		TriggerTimeout: 50 * time.Millisecond,
		CollectTimeout: 50 * time.Millisecond,
		RetryBackoff:   2 * time.Millisecond,
		MaxRetries:     5,
	})

	ad := &fakeAdaptor{id: "dev1", after: 1 * time.Millisecond}
	ad.collectsTill.Store(2)
	if ok := w.Submit(MeasureReq{ID: ad.id, Adaptor: ad}); !ok {
		t.Fatal("submit failed")
	}

	select {
	case r := <-results:
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		temp, _ := findReading(t, r.Sample, "temperature").(types.TemperatureValue)
		hum, _ := findReading(t, r.Sample, "humidity").(types.HumidityValue)
		if temp.DeciC != 250 || hum.RHx100 != 5500 {
			t.Fatalf("bad data: temp=%v hum=%v", temp, hum)
		}
		if got := ad.collects.Load(); got != 3 {
			t.Fatalf("collects = %d, want 3", got)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for result")
	}
}

func TestWorker_RetryLimitFailure(t *testing.T) {
	w, results := startWorker(t, WorkerConfig{RetryBackoff: 1 * time.Millisecond, MaxRetries: 2})

	ad := &fakeAdaptor{id: "dev2", after: 1 * time.Millisecond}
	ad.collectsTill.Store(10)
	if ok := w.Submit(MeasureReq{ID: ad.id, Adaptor: ad}); !ok {
		t.Fatal("submit failed")
	}

	select {
	case r := <-results:
		if !errors.Is(r.Err, ErrNotReady) {
			t.Fatalf("expected ErrNotReady after exhausting retries, got %v", r.Err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for failure result")
	}
}

func TestWorker_HardErrorNotRetried(t *testing.T) {
	w, results := startWorker(t, WorkerConfig{RetryBackoff: 1 * time.Millisecond, MaxRetries: 5})

	boom := errors.New("checksum")
	ad := &fakeAdaptor{id: "dev4", after: time.Millisecond, failWith: boom}
	ad.collectsTill.Store(1)
	w.Submit(MeasureReq{ID: ad.id, Adaptor: ad})

	select {
	case r := <-results:
		if !errors.Is(r.Err, boom) {
			t.Fatalf("err = %v", r.Err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for failure result")
	}
	if got := ad.collects.Load(); got != 1 {
		t.Fatalf("collects = %d, want exactly 1", got)
	}
}

func TestWorker_CoalescingAndReadNowDesire(t *testing.T) {
	w, results := startWorker(t, WorkerConfig{
		RetryBackoff: 1 * time.Millisecond,
		MaxRetries:   1, // force a quick collect failure
	})

	// Fails its first collect cycle (ErrNotReady twice).
	ad := &fakeAdaptor{id: "dev3", after: 10 * time.Millisecond}
	ad.collectsTill.Store(2)

	if ok := w.Submit(MeasureReq{ID: ad.id, Adaptor: ad}); !ok {
		t.Fatal("submit failed")
	}
	// While pending, a priority request sets the desire flag.
	_ = w.Submit(MeasureReq{ID: ad.id, Adaptor: ad, Prio: true})

	select {
	case r := <-results:
		if r.Err == nil {
			t.Fatal("expected error on first cycle")
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for first failure")
	}

	select {
	case r := <-results:
		if r.Err != nil {
			t.Fatalf("unexpected second error: %v", r.Err)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for success after desire re-trigger")
	}
	if got := ad.triggers.Load(); got != 2 {
		t.Fatalf("expected 2 triggers, got %d", got)
	}
}

// -------- helpers --------

func findReading(t *testing.T, s Sample, kind string) any {
	t.Helper()
	for _, r := range s {
		if r.Kind == kind {
			return r.Payload
		}
	}
	t.Fatalf("reading kind %q not found in sample: %#v", kind, s)
	return nil
}

func TestWorker_EmitStopsWithContext(t *testing.T) {
	sink := make(chan Result) // never drained
	w := NewWorker(WorkerConfig{}, sink)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.emit(ctx, Result{ID: "dev1", Err: errors.New("boom")})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("emit returned before the result was taken or ctx ended")
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("emit still blocked after cancel")
	}
}
