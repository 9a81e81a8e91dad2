package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"entrygate/internal/contest"
	"entrygate/internal/entry/identity"
	"entrygate/internal/entry/metrics"
	"entrygate/internal/entry/models"
	"entrygate/internal/schedule"
	dErrors "entrygate/pkg/domain-errors"
	"entrygate/pkg/platform/audit"
	"entrygate/pkg/requestcontext"
)

// Outcome reports how far a submission got.
type Outcome struct {
	// Entry is set once admission committed, even when a later stage failed.
	Entry *models.Entry
	// Stage is the stage that failed, or StageDone.
	Stage Stage
	// ConfirmationErr is set when the confirmation could not be sent. The
	// entry stands and scheduling still ran.
	ConfirmationErr error
}

// Register runs a submission through every stage. The returned error is a
// domain error from the failing stage: invalid_input, duplicate_entry,
// admission_failed or scheduling_failed. A failed confirmation is not an
// error; it is reported on the outcome.
func (p *Pipeline) Register(ctx context.Context, sub *models.Submission, src models.Source) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "entry.register")
	out := &Outcome{Stage: StageValidate}

	candidate, rules, err := p.validate(ctx, sub)
	if err != nil {
		endSpan(span, err)
		return out, err
	}
	span.SetAttributes(attribute.String("contest_id", string(candidate.ContestID)))

	out.Stage = StageAdmit
	entry, err := p.admit(ctx, candidate, rules, src)
	if err != nil {
		endSpan(span, err)
		return out, err
	}
	out.Entry = entry
	span.SetAttributes(attribute.String("entry_id", entry.EntryID.String()))

	out.Stage = StageConfirm
	out.ConfirmationErr = p.confirm(ctx, entry)

	out.Stage = StageSchedule
	if err := p.schedule(ctx, entry, ""); err != nil {
		p.metrics.IncrementOutcome(metrics.OutcomeSchedulingFailed)
		endSpan(span, err)
		return out, err
	}

	out.Stage = StageDone
	endSpan(span, nil)
	return out, nil
}

func (p *Pipeline) validate(ctx context.Context, sub *models.Submission) (*models.Candidate, contest.Rules, error) {
	_, finish := p.startStage(ctx, StageValidate)
	candidate, rules, err := p.validator.Validate(sub)
	finish(err)
	if err != nil {
		p.metrics.IncrementOutcome(metrics.OutcomeInvalid)
		p.logger.InfoContext(ctx, "submission rejected",
			"request_id", requestcontext.RequestID(ctx),
			"contest_id", sub.ContestID,
			"error", err.Error(),
		)
		return nil, contest.Rules{}, err
	}
	return candidate, rules, nil
}

func (p *Pipeline) admit(ctx context.Context, c *models.Candidate, rules contest.Rules, src models.Source) (*models.Entry, error) {
	ctx, finish := p.startStage(ctx, StageAdmit)
	adm := p.admission.Prepare(ctx, c, rules, src)
	err := p.admission.Commit(ctx, adm)
	finish(err)

	entry := adm.Entry
	switch {
	case err == nil:
		p.metrics.IncrementOutcome(metrics.OutcomeAdmitted)
		p.logger.InfoContext(ctx, "entry admitted",
			"request_id", requestcontext.RequestID(ctx),
			"contest_id", string(entry.ContestID),
			"entry_id", entry.EntryID.String(),
		)
		p.emit(ctx, audit.EventEntryAdmitted, audit.Event{
			ContestID:   entry.ContestID,
			EntryID:     entry.EntryID.String(),
			SubjectHash: identity.Short(adm.EmailMarker.Hash),
		})
		return entry, nil

	case dErrors.HasCode(err, dErrors.CodeDuplicateEntry):
		p.metrics.IncrementOutcome(metrics.OutcomeDuplicate)
		p.logger.InfoContext(ctx, "duplicate entry rejected",
			"request_id", requestcontext.RequestID(ctx),
			"contest_id", string(entry.ContestID),
			"email_hash", identity.Short(adm.EmailMarker.Hash),
			"phone_hash", identity.Short(adm.PhoneMarker.Hash),
		)
		p.emit(ctx, audit.EventDuplicateRejected, audit.Event{
			ContestID:   entry.ContestID,
			SubjectHash: identity.Short(adm.EmailMarker.Hash),
		})
		return nil, err

	default:
		p.metrics.IncrementOutcome(metrics.OutcomeAdmissionFailed)
		p.logger.ErrorContext(ctx, "admission commit failed",
			"request_id", requestcontext.RequestID(ctx),
			"contest_id", string(entry.ContestID),
			"error", err.Error(),
		)
		return nil, err
	}
}

func (p *Pipeline) confirm(ctx context.Context, entry *models.Entry) error {
	ctx, finish := p.startStage(ctx, StageConfirm)
	err := p.confirmer.Send(ctx, entry)
	finish(err)
	if err == nil {
		return nil
	}

	p.metrics.IncrementOutcome(metrics.OutcomeConfirmationFailed)
	p.logger.WarnContext(ctx, "confirmation not sent",
		"request_id", requestcontext.RequestID(ctx),
		"contest_id", string(entry.ContestID),
		"entry_id", entry.EntryID.String(),
		"error", err.Error(),
	)
	p.emit(ctx, audit.EventConfirmationFailed, audit.Event{
		ContestID: entry.ContestID,
		EntryID:   entry.EntryID.String(),
	})
	return err
}

// schedule registers both jobs. actor is set for operator repairs.
func (p *Pipeline) schedule(ctx context.Context, entry *models.Entry, actor string) error {
	ctx, finish := p.startStage(ctx, StageSchedule)
	err := p.scheduler.Schedule(ctx, entry)
	finish(err)

	if err != nil {
		failed := schedule.FailedKinds(err)
		kinds := make([]string, len(failed))
		for i, k := range failed {
			kinds[i] = string(k)
		}
		p.logger.ErrorContext(ctx, "schedules incomplete",
			"request_id", requestcontext.RequestID(ctx),
			"contest_id", string(entry.ContestID),
			"entry_id", entry.EntryID.String(),
			"failed_kinds", kinds,
			"error", err.Error(),
		)
		p.emit(ctx, audit.EventSchedulesIncomplete, audit.Event{
			ContestID: entry.ContestID,
			EntryID:   entry.EntryID.String(),
			Reason:    strings.Join(kinds, ","),
			ActorID:   actor,
		})
		return err
	}

	action := audit.EventSchedulesRegistered
	if actor != "" {
		action = audit.EventSchedulesRepaired
	}
	p.emit(ctx, action, audit.Event{
		ContestID: entry.ContestID,
		EntryID:   entry.EntryID.String(),
		ActorID:   actor,
	})
	return nil
}
