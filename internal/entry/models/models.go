package models

import (
	"time"

	id "entrygate/pkg/domain"
)

// Profile keys the pipeline reads directly.
const (
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
)

// Entry is one admitted registration. Created once and never mutated.
type Entry struct {
	ContestID  id.ContestID
	EntryID    id.EntryID
	CreatedAt  time.Time
	Locale     id.Locale
	Email      string // normalized
	Phone      string // normalized
	Profile    map[string]string
	Flags      map[string]bool
	Consent    bool
	DrawAt     time.Time
	ReminderAt time.Time
	Source     Source
}

// FirstName is used for message greetings.
func (e *Entry) FirstName() string {
	if e == nil {
		return ""
	}
	return e.Profile[FieldFirstName]
}

// MarkerKind is the identity dimension a dedupe marker locks.
type MarkerKind string

const (
	MarkerEmail MarkerKind = "email"
	MarkerPhone MarkerKind = "phone"
)

// DedupeMarker reserves one normalized identity value within a contest.
// At most one exists per (contest, kind, hash), ever.
type DedupeMarker struct {
	ContestID id.ContestID
	Kind      MarkerKind
	Hash      string
	EntryID   id.EntryID
	CreatedAt time.Time
}

// Admission is the set of records committed all-or-nothing.
type Admission struct {
	Entry       *Entry
	EmailMarker DedupeMarker
	PhoneMarker DedupeMarker
}

// Markers returns both markers in commit order.
func (a *Admission) Markers() []DedupeMarker {
	return []DedupeMarker{a.EmailMarker, a.PhoneMarker}
}

// Candidate is a submission that passed validation, with identity values
// already normalized and timestamps parsed.
type Candidate struct {
	ContestID id.ContestID
	DrawAt    time.Time
	// ReminderAt is nil when the submission relies on the contest offset.
	ReminderAt *time.Time
	Locale     id.Locale
	Email      string
	Phone      string
	Profile    map[string]string
	Flags      map[string]bool
	Consent    bool
}
