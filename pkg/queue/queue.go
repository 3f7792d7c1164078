package queue

import "context"

// Queue represents a basic queue.
// Implementations must be thread-safe.
type Queue interface {
	// Enqueue adds an item to the end of the queue without blocking.
	Enqueue(item interface{}) error
	// EnqueueWait adds an item to the end of the queue, waiting for space
	// until ctx is done.
	EnqueueWait(ctx context.Context, item interface{}) error
	// Dequeue blocks until an item is available or ctx is done.
	Dequeue(ctx context.Context) (interface{}, error)
	Size() int
	ReadAllMessages() ([]interface{}, error)
	ClearQueue() error
}
