package service

import (
	"context"
	"errors"
	"time"

	"entrygate/internal/contest"
	"entrygate/internal/entry/identity"
	"entrygate/internal/entry/models"
	"entrygate/internal/schedule"
	id "entrygate/pkg/domain"
	dErrors "entrygate/pkg/domain-errors"
	"entrygate/pkg/platform/sentinel"
	"entrygate/pkg/requestcontext"
)

// Store commits admissions and reads entries back. Admit must write the
// entry and both markers in one conditional commit and report a lost
// condition as sentinel.ErrConflict.
type Store interface {
	Admit(ctx context.Context, adm *models.Admission) error
	FindEntry(ctx context.Context, contestID id.ContestID, entryID id.EntryID) (*models.Entry, error)
	FindEntries(ctx context.Context, contestID id.ContestID, entryIDs []id.EntryID) ([]*models.Entry, error)
}

const (
	defaultTxTimeout      = 5 * time.Second
	defaultReminderOffset = 72 * time.Hour
)

// Admission turns a validated candidate into an atomically committed entry.
type Admission struct {
	store          Store
	hasher         *identity.Hasher
	txTimeout      time.Duration
	reminderOffset time.Duration
	newID          func() id.EntryID
}

type AdmissionOption func(*Admission)

// WithTxTimeout bounds the commit. A caller deadline that is sooner still wins.
func WithTxTimeout(d time.Duration) AdmissionOption {
	return func(a *Admission) {
		if d > 0 {
			a.txTimeout = d
		}
	}
}

// WithReminderOffset sets how long before the draw the reminder fires when
// neither the submission nor the contest rules say otherwise.
func WithReminderOffset(d time.Duration) AdmissionOption {
	return func(a *Admission) {
		if d > 0 {
			a.reminderOffset = d
		}
	}
}

func withEntryIDs(next func() id.EntryID) AdmissionOption {
	return func(a *Admission) {
		a.newID = next
	}
}

func NewAdmission(store Store, hasher *identity.Hasher, opts ...AdmissionOption) *Admission {
	a := &Admission{
		store:          store,
		hasher:         hasher,
		txTimeout:      defaultTxTimeout,
		reminderOffset: defaultReminderOffset,
		newID:          id.NewEntryID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prepare builds the entry and its two markers. Nothing is written.
func (a *Admission) Prepare(ctx context.Context, c *models.Candidate, rules contest.Rules, src models.Source) *models.Admission {
	offset := a.reminderOffset
	if rules.ReminderOffset > 0 {
		offset = rules.ReminderOffset
	}
	now := requestcontext.Now(ctx).UTC()
	entry := &models.Entry{
		ContestID:  c.ContestID,
		EntryID:    a.newID(),
		CreatedAt:  now,
		Locale:     c.Locale,
		Email:      c.Email,
		Phone:      c.Phone,
		Profile:    c.Profile,
		Flags:      c.Flags,
		Consent:    c.Consent,
		DrawAt:     c.DrawAt.UTC(),
		ReminderAt: schedule.ReminderAt(c.DrawAt, c.ReminderAt, offset),
		Source:     src,
	}
	marker := func(kind models.MarkerKind, value string) models.DedupeMarker {
		return models.DedupeMarker{
			ContestID: c.ContestID,
			Kind:      kind,
			Hash:      a.hasher.Hash(value),
			EntryID:   entry.EntryID,
			CreatedAt: now,
		}
	}
	return &models.Admission{
		Entry:       entry,
		EmailMarker: marker(models.MarkerEmail, c.Email),
		PhoneMarker: marker(models.MarkerPhone, c.Phone),
	}
}

// Commit writes the admission all-or-nothing. A lost condition means the
// email or phone is already entered and nothing was written.
func (a *Admission) Commit(ctx context.Context, adm *models.Admission) error {
	ctx, cancel := context.WithTimeout(ctx, a.txTimeout)
	defer cancel()

	if err := a.store.Admit(ctx, adm); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeDuplicateEntry, "duplicate_entry")
		}
		return dErrors.Wrap(err, dErrors.CodeAdmissionFailed, "admission failed")
	}
	return nil
}

// Find loads one committed entry.
func (a *Admission) Find(ctx context.Context, contestID id.ContestID, entryID id.EntryID) (*models.Entry, error) {
	e, err := a.store.FindEntry(ctx, contestID, entryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entry")
	}
	return e, nil
}

// FindMany loads the entries that exist, in request order.
func (a *Admission) FindMany(ctx context.Context, contestID id.ContestID, entryIDs []id.EntryID) ([]*models.Entry, error) {
	entries, err := a.store.FindEntries(ctx, contestID, entryIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entries")
	}
	return entries, nil
}
