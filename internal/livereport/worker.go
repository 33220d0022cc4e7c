package livereport

import (
	"context"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Worker defaults.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultBackoffUnit  = 500 * time.Millisecond
)

// Worker drains a Queue through an Adapter. It sends one event at a time; a
// retriable failure keeps the event at the head and waits backoff×retries
// before the next attempt. Other failures abandon the event to the sink.
type Worker struct {
	Queue   *Queue
	Adapter Adapter
	Sink    DeadLetterSink
	// PollInterval bounds the sleep on an empty queue.
	PollInterval time.Duration
	// BackoffUnit is multiplied by the retry count of the head event.
	BackoffUnit time.Duration
	// OnDelivered is called after every acknowledged event.
	OnDelivered func(Event, Response)
}

func (w *Worker) poll() time.Duration {
	if w.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return min(w.PollInterval, DefaultPollInterval)
}

func (w *Worker) backoff() time.Duration {
	if w.BackoffUnit <= 0 {
		return DefaultBackoffUnit
	}
	return w.BackoffUnit
}

// Run delivers events until the queue is closed and empty, the last-chance
// deadline passes or ctx is cancelled. Events still queued when it stops
// early are abandoned.
func (w *Worker) Run(ctx context.Context) {
	var (
		retries int
		headID  int64
	)
	for {
		if reason := w.stopReason(ctx); reason != "" {
			w.abandonAll(reason)
			return
		}
		ev, ok := w.Queue.Peek()
		if !ok {
			if w.Queue.Closed() {
				return
			}
			w.sleep(ctx, w.poll(), true)
			continue
		}
		if ev.ID != headID {
			headID, retries = ev.ID, 0
		}

		resp := w.Adapter.Dispatch(ctx, ev)
		switch {
		case resp.OK():
			w.Queue.Ack(ev.ID)
			if w.OnDelivered != nil {
				w.OnDelivered(ev, resp)
			}
		case resp.Retriable() && ctx.Err() == nil:
			retries++
			logging.Debug("LiveReporting", "%s #%d failed with %s, retry %d", ev.Action, ev.ID, resp, retries)
			w.sleep(ctx, time.Duration(retries)*w.backoff(), false)
		default:
			w.Queue.Ack(ev.ID)
			w.abandon(ev, resp.String())
		}
	}
}

func (w *Worker) stopReason(ctx context.Context) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	if d := w.Queue.Deadline(); !d.IsZero() && !time.Now().Before(d) {
		return "last-chance deadline passed"
	}
	return ""
}

// sleep waits for d, the deadline or ctx. With wake set a queue signal also
// ends the wait.
func (w *Worker) sleep(ctx context.Context, d time.Duration, wake bool) {
	if dl := w.Queue.Deadline(); !dl.IsZero() {
		d = min(d, max(time.Until(dl), 0))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	var ready <-chan struct{}
	if wake {
		ready = w.Queue.Ready()
	}
	select {
	case <-ctx.Done():
	case <-t.C:
	case <-ready:
	}
}

func (w *Worker) abandonAll(reason string) {
	pending := w.Queue.Drain()
	if len(pending) > 0 {
		logging.Warn("LiveReporting", "Abandoning %d queued event(s): %s", len(pending), reason)
	}
	for _, ev := range pending {
		w.abandon(ev, reason)
	}
}

func (w *Worker) abandon(ev Event, reason string) {
	logging.Warn("LiveReporting", "Dropping %s #%d: %s", ev.Action, ev.ID, reason)
	if w.Sink == nil {
		return
	}
	if err := w.Sink.Abandon(ev, reason); err != nil {
		logging.Error("LiveReporting", err, "Cannot record dead letter #%d", ev.ID)
	}
}
