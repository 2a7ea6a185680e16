package queue

import (
	"sync"

	"github.com/dkorunic/rpi-home-sensors/internal/domain"
	"github.com/dkorunic/rpi-home-sensors/internal/ports"
)

// MemQueue is the bounded, mutex-protected FIFO between the sampler and
// the publisher. When full it evicts the oldest reading, so after a long
// sink outage the newest capacity readings are the ones that survive.
type MemQueue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	data     []domain.Reading
	cap      int
	closed   bool
}

// NewMemQueue returns a queue holding at most capacity readings.
// A capacity below 1 is treated as 1.
func NewMemQueue(capacity int) *MemQueue {
	if capacity < 1 {
		capacity = 1
	}
	q := &MemQueue{
		data: make([]domain.Reading, 0, capacity),
		cap:  capacity,
	}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends r at the back. When the queue is full the oldest
// reading is overwritten to admit r and the eviction is reported.
// Enqueue never blocks; after Close it drops r silently.
func (q *MemQueue) Enqueue(r domain.Reading) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if len(q.data) >= q.cap {
		copy(q.data, q.data[1:])
		q.data[len(q.data)-1] = r
		q.nonEmpty.Signal()
		return true
	}
	q.data = append(q.data, r)
	q.nonEmpty.Signal()
	return false
}

// Requeue reinserts a reading the publisher failed to deliver at the
// front, preserving delivery order across retries. When the queue is
// already full the in-flight reading is the oldest sample overall, so it
// is the one discarded and the call reports an eviction.
func (q *MemQueue) Requeue(r domain.Reading) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if len(q.data) >= q.cap {
		return true
	}
	q.data = append(q.data, domain.Reading{})
	copy(q.data[1:], q.data)
	q.data[0] = r
	q.nonEmpty.Signal()
	return false
}

// Dequeue blocks until a reading is available or the queue is closed.
// The second return is false only once the queue has been closed;
// readings still buffered at that point are deliberately dropped.
func (q *MemQueue) Dequeue() (domain.Reading, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.data) == 0 && !q.closed {
		q.nonEmpty.Wait()
	}
	if q.closed {
		return domain.Reading{}, false
	}
	r := q.data[0]
	copy(q.data, q.data[1:])
	q.data = q.data[:len(q.data)-1]
	return r, true
}

// Len reports the number of buffered readings.
func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Cap reports the configured capacity.
func (q *MemQueue) Cap() int { return q.cap }

// Close wakes blocked consumers and makes further operations no-ops.
// Safe to call more than once.
func (q *MemQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.nonEmpty.Broadcast()
}

var _ ports.Queue = (*MemQueue)(nil)
