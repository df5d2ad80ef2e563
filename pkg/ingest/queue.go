package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// OpType represents an operation kind for the ingest pipeline.
type OpType string

const (
	// OpIndex scans and indexes one file into the catalog.
	OpIndex OpType = "index"
	// OpRemove deletes one document from the catalog.
	OpRemove OpType = "remove"
	// OpSync walks an external source mirror and enqueues index/remove ops.
	OpSync OpType = "sync"
)

// Op is a lightweight in-memory representation of an ingest operation.
// Payload may be backed by a pooled ByteBuffer; consumers must call
// Item.Done() when finished.
type Op struct {
	Type   OpType
	Source string
	Path   string
	DocID  string
	// Payload holds raw bytes for the operation (may be nil).
	Payload []byte
	// TS is an optional timestamp (nanoseconds).
	TS int64
	// EnqSeq is a monotonic enqueue sequence assigned when the op is
	// accepted into the in-memory queue.
	EnqSeq uint64
	// Extras holds small metadata extracted from HTTP request headers.
	Extras map[string]string
}

var (
	// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
	ErrQueueFull = errors.New("ingest queue full")
)

// Item wraps an Op and owns a pooled ByteBuffer if one was used. Consumers
// MUST call Done() exactly once after processing the item to return
// pooled resources.
type Item struct {
	Op *Op

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases internal pooled resources (buffer + op) back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) > maxPooledBuffer {
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		if it.Op != nil {
			it.Op.Payload = nil
			it.Op.Extras = nil
			opPool.Put(it.Op)
			it.Op = nil
		}
		itemPool.Put(it)
	})
}

// Queue is a bounded in-memory queue used by the API layer to enqueue
// ingest operations. It is safe for concurrent producers.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

var opPool = sync.Pool{New: func() any { return &Op{} }}
var itemPool = sync.Pool{New: func() any { return &Item{} }}

var (
	enqueueTotal     uint64
	enqueueFailTotal uint64
)

// maxPooledBuffer controls the largest buffer size that will be returned
// to the pool. Larger buffers are dropped to avoid unbounded resident
// memory.
var maxPooledBuffer = 256 * 1024 // 256 KiB

// NewQueue creates a new bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

var enqSeq uint64

// Out returns a read-only channel that consumers range over to receive
// queued items. Do not close it from callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

func (q *Queue) newItem(op *Op) *Item {
	newOp := opPool.Get().(*Op)
	*newOp = *op
	if op.Extras != nil {
		newMap := make(map[string]string, len(op.Extras))
		for k, v := range op.Extras {
			newMap[k] = v
		}
		newOp.Extras = newMap
	}
	newOp.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	it := itemPool.Get().(*Item)
	*it = Item{Op: newOp}
	if len(op.Payload) > 0 {
		bb := bytebufferpool.Get()
		bb.B = append(bb.B[:0], op.Payload...)
		newOp.Payload = bb.B[:len(op.Payload)]
		it.buf = bb
	}
	return it
}

func releaseItem(it *Item) {
	if it.buf != nil {
		bytebufferpool.Put(it.buf)
		it.buf = nil
	}
	if it.Op != nil {
		it.Op.Payload = nil
		it.Op.Extras = nil
		opPool.Put(it.Op)
		it.Op = nil
	}
	itemPool.Put(it)
}

// TryEnqueue attempts to enqueue an Op by copying payload into a pooled
// buffer. If the queue is full ErrQueueFull is returned and the caller may
// choose to reject or retry.
func (q *Queue) TryEnqueue(op *Op) error {
	atomic.AddUint64(&enqueueTotal, 1)
	it := q.newItem(op)
	select {
	case q.ch <- it:
		return nil
	default:
		releaseItem(it)
		atomic.AddUint64(&q.dropped, 1)
		atomic.AddUint64(&enqueueFailTotal, 1)
		return ErrQueueFull
	}
}

// Enqueue attempts to enqueue op, blocking until space is available or the
// provided context is done. Returns ctx.Err() if the context expires.
func (q *Queue) Enqueue(ctx context.Context, op *Op) error {
	atomic.AddUint64(&enqueueTotal, 1)
	it := q.newItem(op)
	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		releaseItem(it)
		atomic.AddUint64(&q.dropped, 1)
		atomic.AddUint64(&enqueueFailTotal, 1)
		return ctx.Err()
	}
}

// CloseAndDrain closes the queue channel and drains remaining items,
// ensuring their resources are released.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// RunWorker runs a worker loop that invokes handler for each dequeued Op.
// It guarantees Item.Done() is called even if handler returns an error.
// The worker exits when stop is closed or when the queue is closed.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Op) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				_ = handler(it.Op)
			}(it)
		case <-stop:
			return
		}
	}
}

// Len returns the current number of items in the queue.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity of the queue.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the number of operations that were dropped due to a full
// queue or context cancellations during enqueue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
