package pipeline

import (
	"sync"

	"github.com/OmniChip/bandgame/internal/band"
)

// eventQueue is the single hand-off point between the hardware goroutine and
// the frame-tick consumer.
//
// The producer appends one event at a time. The consumer takes the whole
// batch at once by swapping the backing slice for an empty one, so the lock
// is held for O(1) work on either side and never while events are delivered.
//
// The queue is unbounded: a slow frame never blocks the hardware goroutine.
type eventQueue struct {
	mu     sync.Mutex
	events []band.Event
	closed bool
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]band.Event, 0, 64),
	}
}

// Append adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Append(e band.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)
	return true
}

// Swap removes and returns every queued event, oldest first.
// Returns nil when the queue is empty.
func (q *eventQueue) Swap() []band.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}

	batch := q.events
	q.events = make([]band.Event, 0, cap(batch))
	return batch
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close refuses further appends and discards anything not yet taken.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	q.events = nil
}
