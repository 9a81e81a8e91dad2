package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"entrygate/internal/entry/models"
	id "entrygate/pkg/domain"
	"entrygate/pkg/platform/sentinel"
	txcontext "entrygate/pkg/platform/tx"
)

// uniqueViolation is the SQLSTATE raised when a contest_records key already exists.
const uniqueViolation = "23505"

const (
	recordTypeEntry  = "entry"
	recordTypeDedupe = "dedupe"
)

// Store keeps the pk/sk key records in contest_records, the same layout the
// DynamoDB table uses, and the entry payload in entries. The primary key on
// contest_records is the conditional check: a duplicate key aborts the
// transaction before anything commits.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Admit commits both markers and the entry in one transaction. When ctx
// already carries a transaction the writes join it and the caller commits.
func (s *Store) Admit(ctx context.Context, adm *models.Admission) error {
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, exec txcontext.Executor) error {
		return s.admit(ctx, exec, adm)
	})
	if err != nil {
		return translate(fmt.Errorf("admit entry: %w", err))
	}
	return nil
}

func (s *Store) admit(ctx context.Context, exec txcontext.Executor, adm *models.Admission) error {
	e := adm.Entry
	pk := models.PartitionKey(e.ContestID)

	const insertRecord = `
		INSERT INTO contest_records (pk, sk, record_type, entry_id, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, m := range adm.Markers() {
		if _, err := exec.ExecContext(ctx, insertRecord,
			pk, m.SortKey(), recordTypeDedupe, m.EntryID.String(), string(m.Kind), m.CreatedAt,
		); err != nil {
			return translate(fmt.Errorf("insert %s marker: %w", m.Kind, err))
		}
	}
	if _, err := exec.ExecContext(ctx, insertRecord,
		pk, models.EntrySortKey(e.EntryID), recordTypeEntry, e.EntryID.String(), nil, e.CreatedAt,
	); err != nil {
		return translate(fmt.Errorf("insert entry record: %w", err))
	}

	profile, flags, source, err := encodeJSONColumns(e)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO entries (
			contest_id, entry_id, created_at, locale, email, phone,
			profile, flags, consent, draw_at, reminder_at, source
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		string(e.ContestID), e.EntryID.String(), e.CreatedAt, string(e.Locale), e.Email, e.Phone,
		profile, flags, e.Consent, e.DrawAt, e.ReminderAt, source,
	)
	if err != nil {
		return translate(fmt.Errorf("insert entry: %w", err))
	}
	return nil
}

// translate maps a unique violation to sentinel.ErrConflict and leaves other errors wrapped.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	return err
}

const selectEntry = `
	SELECT contest_id, entry_id, created_at, locale, email, phone,
		   profile, flags, consent, draw_at, reminder_at, source
	FROM entries
`

func (s *Store) FindEntry(ctx context.Context, contestID id.ContestID, entryID id.EntryID) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE contest_id = $1 AND entry_id = $2`,
		string(contestID), entryID.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return e, nil
}

// FindEntries loads the entries that exist among entryIDs, keeping request order.
func (s *Store) FindEntries(ctx context.Context, contestID id.ContestID, entryIDs []id.EntryID) ([]*models.Entry, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(entryIDs))
	for i, entryID := range entryIDs {
		ids[i] = entryID.String()
	}

	rows, err := s.db.QueryContext(ctx, selectEntry+` WHERE contest_id = $1 AND entry_id = ANY($2::uuid[])`,
		string(contestID), pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*models.Entry, len(ids))
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		found[e.EntryID.String()] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	out := make([]*models.Entry, 0, len(found))
	for _, key := range ids {
		if e, ok := found[key]; ok {
			out = append(out, e)
			delete(found, key)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		e                      models.Entry
		contestID, entryID     string
		locale                 string
		profile, flags, source []byte
		createdAt, drawAt      time.Time
		reminderAt             time.Time
	)
	if err := row.Scan(&contestID, &entryID, &createdAt, &locale, &e.Email, &e.Phone,
		&profile, &flags, &e.Consent, &drawAt, &reminderAt, &source); err != nil {
		return nil, err
	}
	parsed, err := id.ParseEntryID(entryID)
	if err != nil {
		return nil, err
	}
	e.ContestID = id.ContestID(contestID)
	e.EntryID = parsed
	e.Locale = id.Locale(locale)
	e.CreatedAt = createdAt.UTC()
	e.DrawAt = drawAt.UTC()
	e.ReminderAt = reminderAt.UTC()
	if err := decodeJSONColumns(&e, profile, flags, source); err != nil {
		return nil, err
	}
	return &e, nil
}

func encodeJSONColumns(e *models.Entry) (profile, flags, source []byte, err error) {
	if profile, err = json.Marshal(nonNil(e.Profile)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode profile: %w", err)
	}
	if flags, err = json.Marshal(nonNilFlags(e.Flags)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode flags: %w", err)
	}
	if source, err = json.Marshal(e.Source); err != nil {
		return nil, nil, nil, fmt.Errorf("encode source: %w", err)
	}
	return profile, flags, source, nil
}

func decodeJSONColumns(e *models.Entry, profile, flags, source []byte) error {
	if err := json.Unmarshal(profile, &e.Profile); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	if err := json.Unmarshal(flags, &e.Flags); err != nil {
		return fmt.Errorf("decode flags: %w", err)
	}
	if len(e.Flags) == 0 {
		e.Flags = nil
	}
	if err := json.Unmarshal(source, &e.Source); err != nil {
		return fmt.Errorf("decode source: %w", err)
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilFlags(m map[string]bool) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	return m
}
