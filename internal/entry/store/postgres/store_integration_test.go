//go:build integration

package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"entrygate/internal/entry/models"
	pgplatform "entrygate/internal/platform/postgres"
	id "entrygate/pkg/domain"
	"entrygate/pkg/platform/sentinel"
	"entrygate/pkg/testutil/containers"
)

type PostgresEntryStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
	ctx   context.Context
}

func TestPostgresEntryStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresEntryStoreSuite))
}

func (s *PostgresEntryStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(pgplatform.RunMigrations(s.ctx, s.pg.DB))
	s.store = New(s.pg.DB)
}

func (s *PostgresEntryStoreSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, `TRUNCATE contest_records, entries`)
	s.Require().NoError(err)
}

func (s *PostgresEntryStoreSuite) recordCount() int {
	var n int
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx, `SELECT count(*) FROM contest_records`).Scan(&n))
	return n
}

func admission(contestID id.ContestID, emailHash, phoneHash string) *models.Admission {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entryID := id.NewEntryID()
	return &models.Admission{
		Entry: &models.Entry{
			ContestID:  contestID,
			EntryID:    entryID,
			CreatedAt:  now,
			Locale:     id.LocaleEN,
			Email:      "sam@example.com",
			Phone:      "5551234567",
			Profile:    map[string]string{models.FieldFirstName: "Sam"},
			Consent:    true,
			DrawAt:     time.Date(2026, 6, 12, 19, 0, 0, 0, time.UTC),
			ReminderAt: time.Date(2026, 6, 9, 19, 0, 0, 0, time.UTC),
			Source:     models.Source{IP: "203.0.113.9"},
		},
		EmailMarker: models.DedupeMarker{ContestID: contestID, Kind: models.MarkerEmail, Hash: emailHash, EntryID: entryID, CreatedAt: now},
		PhoneMarker: models.DedupeMarker{ContestID: contestID, Kind: models.MarkerPhone, Hash: phoneHash, EntryID: entryID, CreatedAt: now},
	}
}

func (s *PostgresEntryStoreSuite) TestAdmitAndFind() {
	adm := admission("summer", "e1", "p1")
	s.Require().NoError(s.store.Admit(s.ctx, adm))
	s.Equal(3, s.recordCount())

	got, err := s.store.FindEntry(s.ctx, "summer", adm.Entry.EntryID)
	s.Require().NoError(err)
	s.Equal(adm.Entry, got)

	_, err = s.store.FindEntry(s.ctx, "other", adm.Entry.EntryID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresEntryStoreSuite) TestDuplicateRollsBackEverything() {
	s.Require().NoError(s.store.Admit(s.ctx, admission("summer", "e1", "p1")))

	err := s.store.Admit(s.ctx, admission("summer", "e2", "p1"))
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Equal(3, s.recordCount(), "email marker of the rejected admission must not persist")
}

func (s *PostgresEntryStoreSuite) TestConcurrentDuplicatesAdmitExactlyOne() {
	const workers = 16
	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Admit(s.ctx, admission("race", "same", "same")); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), admitted.Load())
	s.Equal(3, s.recordCount())
}

func (s *PostgresEntryStoreSuite) TestFindEntries() {
	a := admission("c", "e1", "p1")
	b := admission("c", "e2", "p2")
	s.Require().NoError(s.store.Admit(s.ctx, a))
	s.Require().NoError(s.store.Admit(s.ctx, b))

	got, err := s.store.FindEntries(s.ctx, "c", []id.EntryID{b.Entry.EntryID, id.NewEntryID(), a.Entry.EntryID})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(b.Entry.EntryID, got[0].EntryID)
	s.Equal(a.Entry.EntryID, got[1].EntryID)
}
