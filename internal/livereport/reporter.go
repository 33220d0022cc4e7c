package livereport

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// DefaultLastChance is the window the worker keeps retrying after the
// first campaign resource was queued.
const DefaultLastChance = 600 * time.Second

// Options configures a Reporter.
type Options struct {
	Adapter Adapter
	// Sink receives abandoned events. Nil only logs them.
	Sink DeadLetterSink
	// LastChance overrides DefaultLastChance.
	LastChance   time.Duration
	PollInterval time.Duration
	BackoffUnit  time.Duration
	User         string
	Version      string
	// CampaignID is the remote id of the campaign; a fresh uuid when empty.
	CampaignID string
	// MetacampaignID groups this campaign under an existing one.
	MetacampaignID string
}

// Reporter is the engine-facing façade of the live reporting pipeline.
// Every Send method queues one event and returns at once.
type Reporter struct {
	opts   Options
	queue  *Queue
	worker *Worker
	header Header

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	delivered []int64
}

// NewReporter starts the worker of a new pipeline.
func NewReporter(opts Options) (*Reporter, error) {
	if opts.Adapter == nil {
		return nil, api.NewError(api.InvalidParameter, "live reporting needs an adapter")
	}
	if opts.CampaignID == "" {
		opts.CampaignID = uuid.NewString()
	}
	if opts.Sink == nil {
		opts.Sink = logSink{}
	}
	if opts.LastChance <= 0 {
		opts.LastChance = DefaultLastChance
	}
	host, _ := os.Hostname()
	r := &Reporter{
		opts:  opts,
		queue: NewQueue(),
		header: Header{
			SessionID: uuid.NewString(),
			User:      opts.User,
			Host:      host,
			Version:   opts.Version,
		},
		done: make(chan struct{}),
	}
	r.worker = &Worker{
		Queue:        r.queue,
		Adapter:      opts.Adapter,
		Sink:         opts.Sink,
		PollInterval: opts.PollInterval,
		BackoffUnit:  opts.BackoffUnit,
		OnDelivered:  r.onDelivered,
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() {
		defer close(r.done)
		r.worker.Run(ctx)
	}()
	return r, nil
}

// CampaignID returns the remote campaign id.
func (r *Reporter) CampaignID() string { return r.opts.CampaignID }

// NewTestCaseID returns a fresh remote id for a test case.
func (r *Reporter) NewTestCaseID() string { return uuid.NewString() }

func (r *Reporter) onDelivered(ev Event, _ Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, ev.ID)
}

// Delivered returns the ids acknowledged by the server, in delivery order.
func (r *Reporter) Delivered() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.delivered...)
}

// Pending returns the number of queued events.
func (r *Reporter) Pending() int { return r.queue.Len() }

func (r *Reporter) push(ev Event) int64 {
	ev.Header = r.header
	queued, ok := r.queue.Push(ev)
	if !ok {
		logging.Warn("LiveReporting", "Reporter closed, %s not queued", ev.Action)
		return 0
	}
	return queued.ID
}

func (r *Reporter) SendStartCampaignInfo(payload map[string]any) int64 {
	return r.push(Event{Action: ActionStartCampaign, Target: r.opts.CampaignID, Parent: r.opts.MetacampaignID, Payload: payload})
}

func (r *Reporter) SendStopCampaignInfo(payload map[string]any) int64 {
	return r.push(Event{Action: ActionStopCampaign, Target: r.opts.CampaignID, Payload: payload})
}

func (r *Reporter) SendStartTCInfo(tcID string, payload map[string]any) int64 {
	return r.push(Event{Action: ActionStartTestCase, Target: tcID, Parent: r.opts.CampaignID, Payload: payload})
}

func (r *Reporter) SendUpdateTCInfo(tcID string, payload map[string]any) int64 {
	return r.push(Event{Action: ActionUpdateTestCase, Target: tcID, Parent: r.opts.CampaignID, Payload: payload})
}

func (r *Reporter) SendStopTCInfo(tcID string, payload map[string]any) int64 {
	return r.push(Event{Action: ActionStopTestCase, Target: tcID, Parent: r.opts.CampaignID, Payload: payload})
}

// SendBulkTCInfo declares several test cases at once, typically the whole
// run list before the first case starts.
func (r *Reporter) SendBulkTCInfo(tests []map[string]any) int64 {
	return r.push(Event{Action: ActionBulkTestCases, Parent: r.opts.CampaignID, Payload: map[string]any{"tests": tests}})
}

func (r *Reporter) SendTestCaseResource(tcID, path string, payload map[string]any) int64 {
	return r.push(Event{Action: ActionTestCaseResource, Target: tcID, Parent: r.opts.CampaignID, File: path, Payload: payload})
}

// SendCampaignResource queues an upload and arms the last-chance deadline
// on the first call.
func (r *Reporter) SendCampaignResource(path string, payload map[string]any) int64 {
	id := r.push(Event{Action: ActionCampaignResource, Target: r.opts.CampaignID, File: path, Payload: payload})
	if id != 0 && r.queue.ArmDeadline(time.Now().Add(r.opts.LastChance)) {
		logging.Debug("LiveReporting", "Last-chance deadline armed for %s", r.opts.LastChance)
	}
	return id
}

func (r *Reporter) SendTestCaseChart(tcID string, chart map[string]any) int64 {
	return r.push(Event{Action: ActionTestCaseChart, Target: tcID, Parent: r.opts.CampaignID, Payload: chart})
}

// Close refuses new events and waits for the worker to drain the queue.
// The wait ends at the last-chance deadline, armed now for drain when no
// resource was sent, or when ctx is done; remaining events are abandoned.
func (r *Reporter) Close(ctx context.Context, drain time.Duration) error {
	r.queue.Close()
	r.queue.ArmDeadline(time.Now().Add(drain))
	select {
	case <-r.done:
	case <-ctx.Done():
		r.cancel()
		<-r.done
	}
	r.cancel()
	if n := r.queue.Len(); n > 0 {
		r.worker.abandonAll("reporter closed")
	}
	return ctx.Err()
}
