package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/ziadkadry99/drivenotify/internal/channel"
)

var (
	// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
	ErrQueueClosed = errors.New("delivery queue is closed")
	// ErrQueueFull is returned by Enqueue when no queue slot is free.
	ErrQueueFull = errors.New("delivery queue is full")
)

const hookTimeout = 10 * time.Second

// CompletionHook receives the final summary of a job's batch. It runs once
// per job, including jobs cut short by shutdown.
type CompletionHook func(ctx context.Context, summary BatchSummary)

// Job is one batch handed to the worker.
type Job struct {
	ID         string
	RecordID   string
	Recipients []string
	Message    channel.OutboundMessage
	OnComplete CompletionHook
}

// Worker consumes jobs from a bounded queue.
type Worker struct {
	dispatcher *Dispatcher
	queue      chan Job
	workers    int
	logger     zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	// ctx is cancelled only when Shutdown runs out of time.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorker creates a Worker with the given queue capacity and number of
// consumer goroutines. Call Start before enqueueing.
func NewWorker(d *Dispatcher, queueSize, workers int, logger zerolog.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		dispatcher: d,
		queue:      make(chan Job, queueSize),
		workers:    workers,
		logger:     logger.With().Str("component", "worker").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the consumer goroutines. It is safe to call more than once.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	w.logger.Info().Int("workers", w.workers).Int("queue_size", cap(w.queue)).Msg("delivery worker started")
}

// Enqueue hands job to the queue without blocking.
func (w *Worker) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrQueueClosed
	}

	select {
	case w.queue <- job:
		queueDepthGauge.Inc()
		w.logger.Debug().Str("job_id", job.ID).Str("record_id", job.RecordID).Int("recipients", len(job.Recipients)).Msg("job queued")
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of jobs waiting.
func (w *Worker) QueueDepth() int { return len(w.queue) }

// Shutdown stops accepting jobs and waits for queued jobs to finish. If ctx
// ends first, in-flight and queued batches are cancelled: their unsent
// recipients are recorded as failed and their hooks still run.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	started := w.started
	w.mu.Unlock()

	if !started {
		// Nobody is consuming; finish queued jobs here as cancelled.
		w.cancel()
		for job := range w.queue {
			w.process(job)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		w.logger.Info().Msg("delivery worker drained")
		return nil
	case <-ctx.Done():
		w.logger.Warn().Int("queued", len(w.queue)).Msg("drain timed out, cancelling remaining deliveries")
		w.cancel()
		<-done
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for job := range w.queue {
		w.process(job)
	}
}

func (w *Worker) process(job Job) {
	queueDepthGauge.Dec()
	summary := w.dispatcher.Dispatch(w.ctx, job.ID, job.Recipients, job.Message)
	if job.OnComplete == nil {
		return
	}

	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), hookTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("job_id", job.ID).Interface("panic", r).Msg("completion hook panicked")
		}
	}()
	job.OnComplete(hookCtx, summary)
}
