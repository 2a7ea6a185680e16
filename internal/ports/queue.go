package ports

import "github.com/dkorunic/rpi-home-sensors/internal/domain"

// Queue is the bounded FIFO shared by the sampler and the publisher.
// Enqueue and Requeue never block; when the queue is full the oldest
// reading is discarded and the call reports the eviction. Dequeue blocks
// until a reading arrives or Close is called.
type Queue interface {
	Enqueue(r domain.Reading) (evicted bool)
	Requeue(r domain.Reading) (evicted bool)
	Dequeue() (domain.Reading, bool)
	Len() int
	Cap() int
	Close()
}
