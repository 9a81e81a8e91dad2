// Package service runs the admission pipeline: validate, admit, confirm,
// schedule. It also hosts the scheduling-only repair used by operators when
// an admitted entry is missing its deferred jobs.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"entrygate/internal/contest"
	"entrygate/internal/entry/metrics"
	"entrygate/internal/entry/models"
	"entrygate/pkg/platform/audit"
	"entrygate/pkg/requestcontext"
)

type Validator interface {
	Validate(sub *models.Submission) (*models.Candidate, contest.Rules, error)
}

// Confirmer sends the confirmation message of a freshly admitted entry.
type Confirmer interface {
	Send(ctx context.Context, e *models.Entry) error
}

// Scheduler registers the reminder and draw jobs of an entry. Calling it
// again for the same entry must not create extra jobs.
type Scheduler interface {
	Schedule(ctx context.Context, e *models.Entry) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Stage names a pipeline step. It tags both outcomes and telemetry.
type Stage string

const (
	StageValidate Stage = "validate"
	StageAdmit    Stage = "admit"
	StageConfirm  Stage = "confirm"
	StageSchedule Stage = "schedule"
	StageDone     Stage = "done"
)

var tracer = otel.Tracer("entrygate/internal/entry/service")

// Pipeline wires the admission stages together.
type Pipeline struct {
	validator Validator
	admission *Admission
	confirmer Confirmer
	scheduler Scheduler
	logger    *slog.Logger
	metrics   *metrics.Metrics
	auditor   AuditPublisher
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithAuditPublisher(a AuditPublisher) Option {
	return func(p *Pipeline) { p.auditor = a }
}

func NewPipeline(validator Validator, admission *Admission, confirmer Confirmer, scheduler Scheduler, opts ...Option) *Pipeline {
	p := &Pipeline{
		validator: validator,
		admission: admission,
		confirmer: confirmer,
		scheduler: scheduler,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// startStage opens a child span and returns a finisher that records the
// stage latency and marks the span failed when err is set.
func (p *Pipeline) startStage(ctx context.Context, stage Stage) (context.Context, func(err error)) {
	ctx, span := tracer.Start(ctx, "entry."+string(stage))
	start := time.Now()
	return ctx, func(err error) {
		p.metrics.ObserveStage(string(stage), start)
		endSpan(span, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func entryAttrs(e *models.Entry) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("contest_id", string(e.ContestID)),
		attribute.String("entry_id", e.EntryID.String()),
	}
}

// emit fills in request metadata and publishes the event. Audit failures
// are logged and never fail the pipeline.
func (p *Pipeline) emit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	if p.auditor == nil {
		return
	}
	event.Action = string(action)
	event.Category = action.Category()
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if err := p.auditor.Emit(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"contest_id", string(event.ContestID),
			"error", err.Error(),
		)
	}
}
