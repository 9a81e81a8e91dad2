package schedule

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"entrygate/internal/entry/models"
	dErrors "entrygate/pkg/domain-errors"
)

// Backend registers one job. Registering a name that already exists must
// update it or do nothing; it must never create a second schedule.
type Backend interface {
	Register(ctx context.Context, job Job) error
}

const defaultCallTimeout = 5 * time.Second

// IncompleteError lists the kinds whose registration failed.
type IncompleteError struct {
	Failed []Kind
	Errs   []error
}

func (e *IncompleteError) Error() string {
	kinds := make([]string, len(e.Failed))
	for i, k := range e.Failed {
		kinds[i] = string(k)
	}
	return "schedules incomplete (" + strings.Join(kinds, ",") + "): " + errors.Join(e.Errs...).Error()
}

func (e *IncompleteError) Unwrap() []error { return e.Errs }

// FailedKinds extracts the failed kinds from a Schedule error.
func FailedKinds(err error) []Kind {
	var inc *IncompleteError
	if errors.As(err, &inc) {
		return inc.Failed
	}
	return nil
}

// Service registers both deferred jobs of an entry.
type Service struct {
	backend     Backend
	callTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Service)

// WithCallTimeout bounds each backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend:     backend,
		callTimeout: defaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers the reminder and draw jobs concurrently. Either failing
// yields a scheduling_failed error carrying an *IncompleteError; the other
// registration is still attempted to completion. Safe to call again for the
// same entry.
func (s *Service) Schedule(ctx context.Context, e *models.Entry) error {
	jobs, err := JobsFor(e)
	if err != nil {
		return err
	}

	errs := make([]error, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
			defer cancel()
			errs[i] = s.backend.Register(callCtx, job)
			return nil
		})
	}
	_ = g.Wait()

	inc := &IncompleteError{}
	for i, err := range errs {
		if err == nil {
			continue
		}
		s.logger.WarnContext(ctx, "schedule registration failed",
			"contest_id", string(e.ContestID),
			"entry_id", e.EntryID.String(),
			"kind", string(jobs[i].Kind),
			"schedule_name", jobs[i].Name,
			"error", err.Error(),
		)
		inc.Failed = append(inc.Failed, jobs[i].Kind)
		inc.Errs = append(inc.Errs, err)
	}
	if len(inc.Failed) > 0 {
		return dErrors.Wrap(inc, dErrors.CodeSchedulingFailed, "failed to register deferred notifications")
	}
	return nil
}
