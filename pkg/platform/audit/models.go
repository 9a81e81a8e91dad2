package audit

import (
	"context"
	"time"

	id "entrygate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers records that prove what happened to a person's entry.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers abuse signals such as duplicate attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers delivery and scheduling outcomes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	ContestID id.ContestID  `json:"contest_id"`
	EntryID   string        `json:"entry_id,omitempty"`
	Action    string        `json:"action"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	ClientIP  string        `json:"client_ip,omitempty"`
	// SubjectHash is a prefix of the dedupe hash, enough to correlate repeated
	// attempts without storing contact details.
	SubjectHash string `json:"subject_hash,omitempty"`
	// ActorID is set for operator actions (schedule repair).
	ActorID string `json:"actor_id,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can be queried back.
type Lister interface {
	ListByContest(ctx context.Context, contestID id.ContestID) ([]Event, error)
}

type AuditEvent string

const (
	EventEntryAdmitted         AuditEvent = "entry_admitted"
	EventDuplicateRejected     AuditEvent = "entry_duplicate_rejected"
	EventConfirmationFailed    AuditEvent = "confirmation_failed"
	EventSchedulesRegistered   AuditEvent = "schedules_registered"
	EventSchedulesIncomplete   AuditEvent = "schedules_incomplete"
	EventSchedulesRepaired     AuditEvent = "schedules_repaired"
	EventNotificationSent      AuditEvent = "notification_sent"
	EventNotificationFailed    AuditEvent = "notification_failed"
	EventSubmissionRateLimited AuditEvent = "submission_rate_limited"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventEntryAdmitted:      CategoryCompliance,
	EventSchedulesRepaired:  CategoryCompliance,
	EventConfirmationFailed: CategoryCompliance,

	EventDuplicateRejected:     CategorySecurity,
	EventSubmissionRateLimited: CategorySecurity,

	EventSchedulesRegistered: CategoryOperations,
	EventSchedulesIncomplete: CategoryOperations,
	EventNotificationSent:    CategoryOperations,
	EventNotificationFailed:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
