package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"entrygate/internal/entry/models"
	"entrygate/internal/schedule"
	id "entrygate/pkg/domain"
	dErrors "entrygate/pkg/domain-errors"
)

const (
	// MaxRepairBatch bounds one batch repair request.
	MaxRepairBatch = 100
	// repairConcurrency bounds concurrent Schedule calls within a batch.
	repairConcurrency = 4
)

// RepairStatus is the per-entry result of a batch repair.
type RepairStatus string

const (
	RepairScheduled RepairStatus = "scheduled"
	RepairNotFound  RepairStatus = "not_found"
	RepairFailed    RepairStatus = "failed"
)

type RepairResult struct {
	EntryID     id.EntryID
	Status      RepairStatus
	FailedKinds []schedule.Kind
	Err         error
}

// Entry returns one admitted entry.
func (p *Pipeline) Entry(ctx context.Context, contestID id.ContestID, entryID id.EntryID) (*models.Entry, error) {
	return p.admission.Find(ctx, contestID, entryID)
}

// RepairSchedules re-registers both deferred jobs of an admitted entry.
// Registration names are derived from the entry, so repairing an entry whose
// jobs already exist updates them in place.
func (p *Pipeline) RepairSchedules(ctx context.Context, contestID id.ContestID, entryID id.EntryID, actor string) (*models.Entry, error) {
	ctx, span := tracer.Start(ctx, "entry.repair")
	entry, err := p.admission.Find(ctx, contestID, entryID)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(entryAttrs(entry)...)

	err = p.schedule(ctx, entry, actor)
	p.countRepair(err)
	endSpan(span, err)
	if err != nil {
		return entry, err
	}
	p.logger.InfoContext(ctx, "schedules repaired",
		"contest_id", string(contestID),
		"entry_id", entryID.String(),
		"actor", actor,
	)
	return entry, nil
}

// RepairBatch repairs several entries of one contest. Per-entry failures are
// reported in the results; the error is only set when the batch could not run.
func (p *Pipeline) RepairBatch(ctx context.Context, contestID id.ContestID, entryIDs []id.EntryID, actor string) ([]RepairResult, error) {
	if len(entryIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entryIds required")
	}
	if len(entryIDs) > MaxRepairBatch {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "too many entryIds")
	}

	ctx, span := tracer.Start(ctx, "entry.repair_batch")
	entries, err := p.admission.FindMany(ctx, contestID, entryIDs)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	byID := make(map[id.EntryID]*models.Entry, len(entries))
	for _, e := range entries {
		byID[e.EntryID] = e
	}

	results := make([]RepairResult, len(entryIDs))
	var g errgroup.Group
	g.SetLimit(repairConcurrency)
	for i, entryID := range entryIDs {
		entry, ok := byID[entryID]
		if !ok {
			results[i] = RepairResult{EntryID: entryID, Status: RepairNotFound}
			p.metrics.IncrementRepair(string(RepairNotFound))
			continue
		}
		g.Go(func() error {
			err := p.schedule(ctx, entry, actor)
			p.countRepair(err)
			results[i] = RepairResult{EntryID: entryID, Status: RepairScheduled}
			if err != nil {
				results[i] = RepairResult{
					EntryID:     entryID,
					Status:      RepairFailed,
					FailedKinds: schedule.FailedKinds(err),
					Err:         err,
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	endSpan(span, nil)
	return results, nil
}

func (p *Pipeline) countRepair(err error) {
	if err != nil {
		p.metrics.IncrementRepair(string(RepairFailed))
		return
	}
	p.metrics.IncrementRepair(string(RepairScheduled))
}
