package livereport

import (
	"sync"
	"time"
)

// Queue is the FIFO of pending events. Ids are assigned at push time and
// increase monotonically. The worker peeks the head and acknowledges it only
// once it was delivered or given up, so a failing event blocks the events
// behind it.
type Queue struct {
	mu     sync.Mutex
	events []Event
	nextID int64
	closed bool

	// deadline is the last-chance time after which pending events are
	// abandoned. Zero means no deadline yet.
	deadline time.Time

	ready chan struct{}
}

// NewQueue returns an empty queue whose first id is 1.
func NewQueue() *Queue {
	return &Queue{nextID: 1, ready: make(chan struct{}, 1)}
}

// Push assigns the next id to ev, appends it and returns it. Pushing onto a
// closed queue returns false.
func (q *Queue) Push(ev Event) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ev, false
	}
	ev.ID = q.nextID
	ev.Header.RequestID = ev.ID
	q.nextID++
	q.events = append(q.events, ev)
	q.signal()
	return ev, true
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Event{}, false
	}
	return q.events[0], true
}

// Ack removes the head if its id is id.
func (q *Queue) Ack(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) > 0 && q.events[0].ID == id {
		q.events = q.events[1:]
	}
}

// Drain removes and returns every pending event.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close refuses further pushes. Pending events stay queued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.signal()
}

// Closed reports whether the queue was closed.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// ArmDeadline records at as the last-chance deadline unless one is
// already set. It reports whether this call set it.
func (q *Queue) ArmDeadline(at time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.deadline.IsZero() {
		return false
	}
	q.deadline = at
	q.signal()
	return true
}

// Deadline returns the last-chance deadline, zero when not armed.
func (q *Queue) Deadline() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deadline
}

// Ready is signalled after a push, a close or a deadline change.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// signal must be called with mu held.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
