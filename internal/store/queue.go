// Package store serializes all access to the embedded SQLite store.
//
// Every read and write is submitted as a command to a bounded FIFO channel and
// answered through a Future. A single worker goroutine drains the channel, so
// no two commands ever touch the connection at the same time. The worker is
// started on demand and exits after an idle grace period. Writes accumulate in
// one open transaction; the watchdog commits it once the worker has stopped,
// and Close drains the queue before the final commit.
package store

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/shelf/internal/db"
	"github.com/hpungsan/shelf/internal/errors"
)

// Options tunes the queue.
type Options struct {
	// Capacity is the command channel buffer. Producers block when it is full.
	Capacity int
	// FlushInterval is the watchdog period.
	FlushInterval time.Duration
	// IdleGrace is how long the worker waits for more work before exiting.
	IdleGrace time.Duration
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		Capacity:      64,
		FlushInterval: time.Second,
		IdleGrace:     500 * time.Millisecond,
	}
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending        int       `json:"pending"`
	Running        bool      `json:"running"`
	Dirty          bool      `json:"dirty"`
	Executed       int64     `json:"executed"`
	Flushes        int64     `json:"flushes"`
	LastFlushAt    time.Time `json:"last_flush_at,omitzero"`
	LastFlushError string    `json:"last_flush_error,omitempty"`
}

type command struct {
	op       string
	mutating bool
	exec     func(ctx context.Context, q db.Querier)
	reject   func(err error)
}

// Queue owns the store handle. Nothing else may use the handle's connection.
type Queue struct {
	handle *db.Handle
	logger *zap.Logger
	opts   Options
	ctx    context.Context

	cmds chan *command

	mu         sync.Mutex
	running    bool
	submitting int
	closed     bool
	closing    chan struct{}
	workers    sync.WaitGroup

	// tx is only touched by the worker, or under mu while no worker runs.
	tx    *sql.Tx
	dirty atomic.Bool

	executed     atomic.Int64
	flushes      atomic.Int64
	lastFlushAt  time.Time
	lastFlushErr error

	stopWatchdog chan struct{}
	watchdogDone chan struct{}
}

// New wraps handle in a queue and starts the flush watchdog.
func New(handle *db.Handle, logger *zap.Logger, opts Options) *Queue {
	def := DefaultOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = def.Capacity
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = def.FlushInterval
	}
	if opts.IdleGrace <= 0 {
		opts.IdleGrace = def.IdleGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &Queue{
		handle:       handle,
		logger:       logger.Named("store"),
		opts:         opts,
		ctx:          context.Background(),
		cmds:         make(chan *command, opts.Capacity),
		closing:      make(chan struct{}),
		stopWatchdog: make(chan struct{}),
		watchdogDone: make(chan struct{}),
	}
	go q.watchdog()
	return q
}

// Submit queues fn for execution on the worker and returns its future.
// mutating marks commands that write; they run inside the pending
// transaction and set the dirty flag.
func Submit[T any](q *Queue, op string, mutating bool, fn func(ctx context.Context, dq db.Querier) (T, error)) *Future[T] {
	f := newFuture[T]()
	cmd := &command{
		op:       op,
		mutating: mutating,
		exec: func(ctx context.Context, dq db.Querier) {
			v, err := fn(ctx, dq)
			f.resolve(v, err)
		},
		reject: func(err error) {
			var zero T
			f.resolve(zero, err)
		},
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		cmd.reject(errors.NewQueueClosed())
		return f
	}
	q.submitting++
	if !q.running {
		q.running = true
		q.workers.Add(1)
		go q.run()
	}
	q.mu.Unlock()

	q.logger.Debug("command queued", zap.String("op", op))
	q.cmds <- cmd

	q.mu.Lock()
	q.submitting--
	q.mu.Unlock()

	return f
}

// run is the single consumer. It exits once the channel is empty, no
// producer is mid-send, and the idle grace elapsed (immediately when closing).
func (q *Queue) run() {
	defer q.workers.Done()

	grace := q.opts.IdleGrace
	closing := q.closing
	timer := time.NewTimer(grace)
	defer timer.Stop()

	for {
		select {
		case cmd := <-q.cmds:
			q.execute(cmd)
			timer.Reset(grace)

		case <-closing:
			closing = nil
			grace = time.Millisecond
			timer.Reset(0)

		case <-timer.C:
			q.mu.Lock()
			if len(q.cmds) == 0 && q.submitting == 0 {
				q.running = false
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			timer.Reset(grace)
		}
	}
}

func (q *Queue) execute(cmd *command) {
	q.logger.Debug("execute command", zap.String("op", cmd.op), zap.Bool("mutating", cmd.mutating))

	querier, err := q.querier(cmd.mutating)
	if err != nil {
		cmd.reject(errors.NewStore(cmd.op, err))
		return
	}

	cmd.exec(q.ctx, querier)
	if cmd.mutating {
		q.dirty.Store(true)
	}
	q.executed.Add(1)
}

// querier returns the open transaction, beginning one for writes. Reads
// without a pending transaction go straight to the connection.
func (q *Queue) querier(mutating bool) (db.Querier, error) {
	if q.tx != nil {
		return q.tx, nil
	}
	if !mutating {
		return q.handle.DB, nil
	}
	tx, err := q.handle.DB.BeginTx(q.ctx, nil)
	if err != nil {
		return nil, err
	}
	q.tx = tx
	return tx, nil
}

// flushLocked commits the pending transaction. Callers hold mu and are
// either the worker itself or run while no worker does. Failures are logged and kept for Stats;
// only Flush reports them to a caller.
func (q *Queue) flushLocked(reason string) error {
	if q.tx == nil {
		q.dirty.Store(false)
		return nil
	}

	err := q.tx.Commit()
	q.tx = nil
	q.dirty.Store(false)

	q.lastFlushAt = time.Now()
	q.lastFlushErr = err
	if err != nil {
		q.logger.Error("failed to flush store", zap.String("reason", reason), zap.Error(err))
		return err
	}
	q.flushes.Add(1)
	q.logger.Debug("store flushed", zap.String("reason", reason))
	return nil
}

// watchdog commits dirty state left by a worker that has gone idle.
func (q *Queue) watchdog() {
	defer close(q.watchdogDone)

	ticker := time.NewTicker(q.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopWatchdog:
			return
		case <-ticker.C:
			q.mu.Lock()
			if !q.running && q.dirty.Load() {
				_ = q.flushLocked("watchdog")
			}
			q.mu.Unlock()
		}
	}
}

// Flush queues a commit behind every command submitted before it.
func (q *Queue) Flush() *Future[struct{}] {
	return Submit(q, "flush", false, func(context.Context, db.Querier) (struct{}, error) {
		q.mu.Lock()
		defer q.mu.Unlock()
		if err := q.flushLocked("requested"); err != nil {
			return struct{}{}, errors.NewStore("flush", err)
		}
		return struct{}{}, nil
	})
}

// Stats returns a snapshot of queue state.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Pending:     len(q.cmds),
		Running:     q.running,
		Dirty:       q.dirty.Load(),
		Executed:    q.executed.Load(),
		Flushes:     q.flushes.Load(),
		LastFlushAt: q.lastFlushAt,
	}
	if q.lastFlushErr != nil {
		s.LastFlushError = q.lastFlushErr.Error()
	}
	return s
}

// Close stops accepting commands, waits for the queue to drain, performs a
// final flush and releases the store handle. It is safe to call twice.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closing)
	q.mu.Unlock()

	q.workers.Wait()

	close(q.stopWatchdog)
	<-q.watchdogDone

	q.mu.Lock()
	_ = q.flushLocked("shutdown")
	q.mu.Unlock()

	q.logger.Info("store closed", zap.Int64("executed", q.executed.Load()))
	return q.handle.Close()
}
