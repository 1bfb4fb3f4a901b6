package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/syncerr"
)

// OpKind enumerates the closed set of operations the offline queue can
// replay. Anything else is a programming error, not user input.
type OpKind string

const (
	OpAppend OpKind = "append"
	OpUndo   OpKind = "undo"
	OpRedo   OpKind = "redo"
	OpClear  OpKind = "clear"
)

type AppendArgs struct {
	SessionID      string
	Stroke         model.StrokePayload
	AuthorRole     string
	AuthorName     string
	IdempotencyKey string
}

type AuthorArgs struct {
	SessionID  string
	AuthorRole string
	AuthorName string
}

// Operation is one queued mutation: the kind tag decides which args
// field is populated.
type Operation struct {
	Kind     OpKind
	Append   *AppendArgs
	Author   *AuthorArgs
	Attempts int
}

// QueueConfig tunes the retry loop; zero values pick the defaults the
// protocol expects (4s flush interval, 5 attempts).
type QueueConfig struct {
	FlushInterval time.Duration
	MaxAttempts   int
	// OnAbandon is called once per operation that is given up on,
	// either after exhausting attempts or on a terminal error.
	OnAbandon func(op Operation, err error)
}

// OperationQueue buffers mutations rejected by transient failures and
// replays them strictly in enqueue order. The flush ticker arms itself
// on the first enqueue and disarms once the queue drains.
type OperationQueue struct {
	exec        func(ctx context.Context, op Operation) error
	interval    time.Duration
	maxAttempts int
	onAbandon   func(op Operation, err error)

	mu       sync.Mutex
	ops      []Operation
	flushing bool
	armed    bool
	stopCh   chan struct{}
	stopped  bool
}

func NewOperationQueue(exec func(ctx context.Context, op Operation) error, cfg QueueConfig) *OperationQueue {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 4 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &OperationQueue{
		exec:        exec,
		interval:    cfg.FlushInterval,
		maxAttempts: cfg.MaxAttempts,
		onAbandon:   cfg.OnAbandon,
		stopCh:      make(chan struct{}),
	}
}

// Enqueue appends an operation and arms the flush ticker if idle.
func (q *OperationQueue) Enqueue(op Operation) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.ops = append(q.ops, op)
	arm := !q.armed
	if arm {
		q.armed = true
	}
	q.mu.Unlock()

	if arm {
		go q.flushLoop()
	}
}

func (q *OperationQueue) flushLoop() {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.Flush(context.Background())
			q.mu.Lock()
			if len(q.ops) == 0 {
				q.armed = false
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
		}
	}
}

// Flush replays every queued operation in order. A flush that starts
// while another is running is a no-op, so overlapping ticks cannot
// duplicate retries.
func (q *OperationQueue) Flush(ctx context.Context) {
	q.mu.Lock()
	if q.flushing || len(q.ops) == 0 {
		q.mu.Unlock()
		return
	}
	q.flushing = true
	pending := q.ops
	q.ops = nil
	q.mu.Unlock()

	var remaining []Operation
	for _, op := range pending {
		err := q.exec(ctx, op)
		if err == nil {
			continue
		}
		op.Attempts++
		if syncerr.IsTransient(err) && op.Attempts < q.maxAttempts {
			remaining = append(remaining, op)
			continue
		}
		log.Printf("[Queue] Abandoning %s operation after %d attempts: %v", op.Kind, op.Attempts, err)
		if q.onAbandon != nil {
			q.onAbandon(op, err)
		}
	}

	q.mu.Lock()
	// New operations may have arrived during the flush; they were
	// enqueued after everything we are still holding.
	q.ops = append(remaining, q.ops...)
	q.flushing = false
	q.mu.Unlock()
}

// Len reports how many operations are waiting.
func (q *OperationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Stop drops everything and stops the ticker; used on leave.
func (q *OperationQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	q.ops = nil
	q.armed = false
	close(q.stopCh)
}
