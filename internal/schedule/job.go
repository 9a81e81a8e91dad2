// Package schedule registers the two deferred notifications of an entry
// (reminder and draw day) with a one-shot scheduling backend.
package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"

	"entrygate/internal/entry/models"
	id "entrygate/pkg/domain"
	dErrors "entrygate/pkg/domain-errors"
)

// Kind names a deferred notification. It doubles as the dispatch template.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindDraw     Kind = "draw"
)

// Kinds lists every kind in registration order.
var Kinds = []Kind{KindReminder, KindDraw}

func (k Kind) Valid() bool {
	return k == KindReminder || k == KindDraw
}

const (
	maxNameLen = 64
	nameHexLen = 32
	// atLayout is the one-time expression layout: UTC, no sub-seconds, no zone suffix.
	atLayout = "2006-01-02T15:04:05"
)

var nameAlphabet = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Payload is what a fired job hands to the dispatcher.
type Payload struct {
	ContestID id.ContestID `json:"contestId"`
	EntryID   string       `json:"entryId"`
	Email     string       `json:"email"`
	FirstName string       `json:"firstName,omitempty"`
	Locale    id.Locale    `json:"locale"`
	Template  Kind         `json:"template"`
}

// Job is one named, one-shot registration.
type Job struct {
	Name    string    `json:"name"`
	Kind    Kind      `json:"kind"`
	FireAt  time.Time `json:"fireAt"`
	Payload Payload   `json:"payload"`
}

// JobName derives the registration name from the entry and kind, so a retry
// addresses the same schedule instead of creating a second one.
func JobName(entryID id.EntryID, kind Kind) (string, error) {
	sum := sha256.Sum256([]byte(entryID.String() + string(kind)))
	name := string(kind) + "-" + hex.EncodeToString(sum[:])[:nameHexLen]
	if len(name) > maxNameLen || !nameAlphabet.MatchString(name) {
		return "", dErrors.New(dErrors.CodeSchedulingNameTooLong, "schedule name exceeds backend limits: "+name)
	}
	return name, nil
}

// FormatAt renders t in the one-time expression layout.
func FormatAt(t time.Time) string {
	return t.UTC().Format(atLayout)
}

// AtExpression is the EventBridge Scheduler one-time expression for t.
func AtExpression(t time.Time) string {
	return "at(" + FormatAt(t) + ")"
}

// ReminderAt is the explicit reminder time when given, otherwise drawAt minus offset.
func ReminderAt(drawAt time.Time, explicit *time.Time, offset time.Duration) time.Time {
	if explicit != nil {
		return explicit.UTC()
	}
	return drawAt.Add(-offset).UTC()
}

// JobsFor builds the reminder and draw jobs of an admitted entry.
func JobsFor(e *models.Entry) ([]Job, error) {
	jobs := make([]Job, 0, len(Kinds))
	for _, kind := range Kinds {
		name, err := JobName(e.EntryID, kind)
		if err != nil {
			return nil, err
		}
		fireAt := e.DrawAt
		if kind == KindReminder {
			fireAt = e.ReminderAt
		}
		jobs = append(jobs, Job{
			Name:   name,
			Kind:   kind,
			FireAt: fireAt.UTC().Truncate(time.Second),
			Payload: Payload{
				ContestID: e.ContestID,
				EntryID:   e.EntryID.String(),
				Email:     e.Email,
				FirstName: e.FirstName(),
				Locale:    e.Locale,
				Template:  kind,
			},
		})
	}
	return jobs, nil
}
