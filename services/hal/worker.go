// services/hal/worker.go
package hal

import (
	"context"
	"errors"
	"time"
)

// measureWorker serialises Trigger/Collect cycles for every adaptor in one
// group. Single-wire captures in the same group never overlap.
type measureWorker struct {
	cfg  WorkerConfig
	reqQ chan MeasureReq
	sink chan<- Result

	pending  map[string]*collectItem
	want     map[string]bool
	collects []*collectItem
	timer    *time.Timer
}

type collectItem struct {
	id      string
	adaptor Adaptor
	due     time.Time
	retries int
}

func NewWorker(cfg WorkerConfig, sink chan<- Result) *measureWorker {
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = 100 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 250 * time.Millisecond
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 15 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 16
	}
	return &measureWorker{
		cfg:     cfg,
		reqQ:    make(chan MeasureReq, cfg.InputQueueSize),
		sink:    sink,
		pending: map[string]*collectItem{},
		want:    map[string]bool{},
		timer:   time.NewTimer(idleWait),
	}
}

// Submit queues a request without blocking. Priority requests wait briefly
// for queue space.
func (w *measureWorker) Submit(req MeasureReq) bool {
	select {
	case w.reqQ <- req:
		return true
	default:
		if req.Prio {
			select {
			case w.reqQ <- req:
				return true
			case <-time.After(5 * time.Millisecond):
			}
		}
		return false
	}
}

func (w *measureWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *measureWorker) run(ctx context.Context) {
	for {
		if next := w.minDue(); next.IsZero() {
			resetTimer(w.timer, idleWait)
		} else {
			resetTimer(w.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			w.timer.Stop()
			return
		case req := <-w.reqQ:
			w.accept(ctx, req)
		case <-w.timer.C:
			w.collectDue(ctx)
		}
	}
}

func (w *measureWorker) accept(ctx context.Context, req MeasureReq) {
	if _, ok := w.pending[req.ID]; ok {
		// Coalesce; remember that a fresh reading was asked for.
		if req.Prio {
			w.want[req.ID] = true
		}
		return
	}
	it := &collectItem{id: req.ID, adaptor: req.Adaptor}
	if err := w.trigger(ctx, it); err != nil {
		w.emit(ctx, Result{ID: req.ID, Err: err})
		return
	}
	w.pending[req.ID] = it
	w.collects = append(w.collects, it)
}

func (w *measureWorker) trigger(ctx context.Context, it *collectItem) error {
	tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
	after, err := it.adaptor.Trigger(tctx)
	cancel()
	if err != nil {
		return err
	}
	it.retries = 0
	it.due = time.Now().Add(after)
	return nil
}

func (w *measureWorker) collectDue(ctx context.Context) {
	now := time.Now()
	var keep []*collectItem
	for _, it := range w.collects {
		if now.Before(it.due) {
			keep = append(keep, it)
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CollectTimeout)
		s, err := it.adaptor.Collect(cctx)
		cancel()
		switch {
		case err == nil:
			delete(w.pending, it.id)
			delete(w.want, it.id)
			w.emit(ctx, Result{ID: it.id, Sample: s})
		case errors.Is(err, ErrNotReady) && it.retries < w.cfg.MaxRetries:
			it.retries++
			it.due = now.Add(w.cfg.RetryBackoff)
			keep = append(keep, it)
		default:
			delete(w.pending, it.id)
			w.emit(ctx, Result{ID: it.id, Err: err})
			if w.want[it.id] {
				delete(w.want, it.id)
				if w.trigger(ctx, it) == nil {
					w.pending[it.id] = it
					keep = append(keep, it)
				}
			}
		}
	}
	w.collects = keep
}

// emit hands r to the service, giving up once ctx ends.
func (w *measureWorker) emit(ctx context.Context, r Result) {
	select {
	case w.sink <- r:
	case <-ctx.Done():
	}
}

func (w *measureWorker) minDue() time.Time {
	var min time.Time
	for _, it := range w.collects {
		if min.IsZero() || it.due.Before(min) {
			min = it.due
		}
	}
	return min
}
