package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Handler delivers the payload of a fired job.
type Handler func(ctx context.Context, p Payload) error

// Worker polls a RedisQueue and hands due jobs to a Handler. A failed
// delivery is retried with linear backoff until maxAttempts, then moved to
// the dead-letter hash. Delivery is at most once per claim: a crash after the
// claim and before the handler returns drops that attempt.
type Worker struct {
	queue       *RedisQueue
	handler     Handler
	interval    time.Duration
	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
	now         func() time.Time

	cron *cron.Cron
}

type WorkerOption func(*Worker)

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func WithRetryDelay(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.retryDelay = d
		}
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func withWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

func NewWorker(queue *RedisQueue, handler Handler, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:       queue,
		handler:     handler,
		interval:    5 * time.Second,
		batchSize:   50,
		maxAttempts: 3,
		retryDelay:  time.Minute,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start polls every interval until Stop. Overlapping polls are skipped.
func (w *Worker) Start(ctx context.Context) {
	w.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	w.cron.Schedule(cron.Every(w.interval), cron.FuncJob(func() {
		if _, err := w.Poll(ctx); err != nil {
			w.logger.ErrorContext(ctx, "schedule poll failed", "error", err.Error())
		}
	}))
	w.cron.Start()
	w.logger.InfoContext(ctx, "schedule worker started",
		"interval", w.interval.String(),
		"batch_size", w.batchSize,
		"max_attempts", w.maxAttempts,
	)
}

// Stop waits for an in-flight poll to finish or ctx to expire.
func (w *Worker) Stop(ctx context.Context) {
	if w.cron == nil {
		return
	}
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Poll delivers every due job once and returns how many were delivered.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	now := w.now()
	names, err := w.queue.due(ctx, now.Unix(), w.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, name := range names {
		claimed, err := w.queue.claim(ctx, name)
		if err != nil {
			return delivered, err
		}
		if !claimed {
			continue
		}
		env, body, ok, err := w.queue.load(ctx, name)
		if err != nil {
			w.logger.ErrorContext(ctx, "schedule job unreadable", "schedule_name", name, "error", err.Error())
			continue
		}
		if !ok {
			w.logger.WarnContext(ctx, "schedule job has no body, dropped", "schedule_name", name)
			continue
		}
		if w.deliver(ctx, now, env, body) {
			delivered++
		}
	}
	return delivered, nil
}

func (w *Worker) deliver(ctx context.Context, now time.Time, env envelope, body []byte) bool {
	err := w.handler(ctx, env.Job.Payload)
	if err == nil {
		cleared, cerr := w.queue.complete(ctx, env.Job.Name, body)
		switch {
		case cerr != nil:
			w.logger.WarnContext(ctx, "failed to clear delivered job", "schedule_name", env.Job.Name, "error", cerr.Error())
		case !cleared:
			w.logger.InfoContext(ctx, "job registered again during delivery, kept", "schedule_name", env.Job.Name)
		}
		return true
	}

	env.Attempts++
	env.LastError = err.Error()
	attrs := []any{
		"schedule_name", env.Job.Name,
		"entry_id", env.Job.Payload.EntryID,
		"attempt", env.Attempts,
		"error", err.Error(),
	}
	if env.Attempts >= w.maxAttempts {
		w.logger.ErrorContext(ctx, "schedule job exhausted attempts", attrs...)
		if berr := w.queue.bury(ctx, env); berr != nil {
			w.logger.ErrorContext(ctx, "failed to dead-letter job", "schedule_name", env.Job.Name, "error", berr.Error())
		}
		return false
	}

	w.logger.WarnContext(ctx, "schedule job delivery failed, will retry", attrs...)
	retryAt := now.Add(time.Duration(env.Attempts) * w.retryDelay)
	requeued, perr := w.queue.requeue(ctx, env, float64(retryAt.Unix()))
	switch {
	case perr != nil:
		w.logger.ErrorContext(ctx, "failed to requeue job", "schedule_name", env.Job.Name, "error", perr.Error())
	case !requeued:
		w.logger.InfoContext(ctx, "job registered again during delivery, retry skipped", "schedule_name", env.Job.Name)
	}
	return false
}
