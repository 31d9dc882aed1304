package realtime

import (
	"sync/atomic"

	"github.com/ashureev/sitecraft/internal/store"
)

// DefaultQueueSize is how many changes may wait for a slow client.
const DefaultQueueSize = 16

// changeQueue is a bounded FIFO that never blocks the producer. When full,
// the oldest pending change is discarded; every change carries the whole
// state, so the newest one is enough to catch up.
type changeQueue struct {
	ch      chan store.Change
	dropped atomic.Int64
}

func newChangeQueue(size int) *changeQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &changeQueue{ch: make(chan store.Change, size)}
}

func (q *changeQueue) push(c store.Change) {
	for {
		select {
		case q.ch <- c:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}
