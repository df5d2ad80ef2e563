package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/sidharthgd/LabVerse/pkg/index"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/models"
	"github.com/sidharthgd/LabVerse/pkg/telemetry"
)

// Handler processes one dequeued op.
type Handler func(ctx context.Context, op *Op) error

// Processor drains the queue with a worker pool, dispatching ops by type.
type Processor struct {
	queue    *Queue
	workers  int
	mu       sync.RWMutex
	handlers map[OpType]Handler

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProcessor builds a processor over q with the given worker count.
func NewProcessor(q *Queue, workers int) *Processor {
	if workers <= 0 {
		workers = 2
	}
	return &Processor{
		queue:    q,
		workers:  workers,
		handlers: make(map[OpType]Handler),
		stop:     make(chan struct{}),
	}
}

// RegisterHandler binds a handler to an op type, replacing any previous one.
func (p *Processor) RegisterHandler(t OpType, h Handler) {
	p.mu.Lock()
	p.handlers[t] = h
	p.mu.Unlock()
}

// Start launches the worker pool.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.queue.RunWorker(p.stop, func(op *Op) error {
				return p.dispatch(ctx, op)
			})
		}()
	}
	logger.Info("ingest_workers_started", "workers", p.workers, "capacity", p.queue.Cap())
}

// Stop signals workers and waits for them to drain in-flight ops.
func (p *Processor) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Processor) dispatch(ctx context.Context, op *Op) error {
	p.mu.RLock()
	h, ok := p.handlers[op.Type]
	p.mu.RUnlock()
	if !ok {
		logger.Warn("ingest_unknown_op", "type", string(op.Type), "path", op.Path)
		telemetry.ObserveIngest(string(op.Type), "unknown")
		return fmt.Errorf("no handler for op type %q", op.Type)
	}
	if err := h(ctx, op); err != nil {
		logger.Error("ingest_op_failed", "type", string(op.Type), "path", op.Path, "error", err)
		telemetry.ObserveIngest(string(op.Type), "error")
		return err
	}
	telemetry.ObserveIngest(string(op.Type), "ok")
	return nil
}

// RegisterDefaultHandlers wires the standard index, remove and sync
// handlers over the scanner, catalog index and source registry.
func RegisterDefaultHandlers(p *Processor, sc *Scanner, ix *index.Index, sources *Registry) {
	indexFile := func(ctx context.Context, op *Op) error {
		var doc models.Document
		var err error
		if len(op.Payload) > 0 {
			doc, err = sc.ScanFileWithHead(op.Path, op.Source, op.Payload)
		} else {
			doc, err = sc.ScanFile(op.Path, op.Source)
		}
		if err != nil {
			return err
		}
		if err := ix.Add(ctx, doc); err != nil {
			return err
		}
		telemetry.SetIndexedDocuments(ix.Len())
		return nil
	}

	p.RegisterHandler(OpIndex, indexFile)

	p.RegisterHandler(OpRemove, func(ctx context.Context, op *Op) error {
		if op.DocID == "" {
			return fmt.Errorf("remove op missing doc id")
		}
		if err := ix.Remove(op.DocID); err != nil {
			return err
		}
		telemetry.SetIndexedDocuments(ix.Len())
		return nil
	})

	p.RegisterHandler(OpSync, func(ctx context.Context, op *Op) error {
		conn, ok := sources.Get(op.Source)
		if !ok {
			return fmt.Errorf("unknown ingest source %q", op.Source)
		}
		paths, err := conn.List(ctx)
		if err != nil {
			return err
		}
		// Sync runs on the same pool that drains the queue, so a blocking
		// enqueue here can leave every worker waiting for space none of
		// them will free. Files that do not fit are indexed inline.
		enqueued, inline := 0, 0
		for _, path := range paths {
			child := &Op{Type: OpIndex, Source: op.Source, Path: path}
			if err := p.queue.TryEnqueue(child); err == nil {
				enqueued++
				continue
			}
			if err := indexFile(ctx, child); err != nil {
				logger.Warn("ingest_sync_index_failed", "path", path, "error", err)
				continue
			}
			inline++
		}
		logger.Info("ingest_sync_done", "source", op.Source, "queued", enqueued, "inline", inline)
		return nil
	})
}
