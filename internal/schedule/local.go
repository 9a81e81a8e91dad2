package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Local fires jobs from in-process timers. Jobs do not survive a restart, so
// it is meant for development and tests.
type Local struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	handler Handler
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewLocal(handler Handler, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		timers:  make(map[string]*time.Timer),
		handler: handler,
		logger:  logger,
		now:     time.Now,
		timeout: 30 * time.Second,
	}
}

// Register arms a timer for the job, replacing any timer with the same name.
func (l *Local) Register(_ context.Context, job Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.timers[job.Name]; ok {
		existing.Stop()
	}
	delay := job.FireAt.Sub(l.now())
	var t *time.Timer
	t = time.AfterFunc(delay, func() { l.fire(job, &t) })
	l.timers[job.Name] = t
	return nil
}

// fire runs the handler unless the timer was replaced after it expired.
// self is read under the lock, after Register has stored it.
func (l *Local) fire(job Job, self **time.Timer) {
	l.mu.Lock()
	current, ok := l.timers[job.Name]
	if !ok || current != *self {
		l.mu.Unlock()
		return
	}
	delete(l.timers, job.Name)
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := l.handler(ctx, job.Payload); err != nil {
		l.logger.ErrorContext(ctx, "local schedule delivery failed",
			"schedule_name", job.Name,
			"entry_id", job.Payload.EntryID,
			"error", err.Error(),
		)
	}
}

// Pending returns the number of armed timers.
func (l *Local) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Stop disarms every timer.
func (l *Local) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, t := range l.timers {
		t.Stop()
		delete(l.timers, name)
	}
}
