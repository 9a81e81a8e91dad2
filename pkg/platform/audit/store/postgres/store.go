package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "entrygate/pkg/domain"
	audit "entrygate/pkg/platform/audit"
	txcontext "entrygate/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table. The insert joins a
// transaction carried by the context (see pkg/platform/tx). The publisher
// emits after the admission commits, so its writes use the pool.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an audit event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, contest_id, entry_id, action,
			reason, request_id, client_ip, subject_hash, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		string(event.ContestID),
		event.EntryID,
		event.Action,
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.SubjectHash,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByContest returns a contest's events, newest first.
func (s *Store) ListByContest(ctx context.Context, contestID id.ContestID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, contest_id, entry_id, action,
			   reason, request_id, client_ip, subject_hash, actor_id
		FROM audit_events
		WHERE contest_id = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, string(contestID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
			contest  string
		)
		if err := rows.Scan(&category, &e.Timestamp, &contest, &e.EntryID, &e.Action,
			&e.Reason, &e.RequestID, &e.ClientIP, &e.SubjectHash, &e.ActorID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.ContestID = id.ContestID(contest)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
