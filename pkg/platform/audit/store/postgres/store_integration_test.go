//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	pgplatform "entrygate/internal/platform/postgres"
	audit "entrygate/pkg/platform/audit"
	txcontext "entrygate/pkg/platform/tx"
	"entrygate/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
	ctx   context.Context
}

func TestAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(pgplatform.RunMigrations(s.ctx, s.pg.DB))
	s.store = New(s.pg.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, `TRUNCATE audit_events`)
	s.Require().NoError(err)
}

func (s *AuditStoreSuite) TestListNewestFirst() {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Append(s.ctx, audit.Event{
		Timestamp: base, ContestID: "summer-2026", EntryID: "e-1",
		Action: string(audit.EventEntryAdmitted), ClientIP: "203.0.113.7",
	}))
	s.Require().NoError(s.store.Append(s.ctx, audit.Event{
		Timestamp: base.Add(time.Minute), ContestID: "summer-2026",
		Action: string(audit.EventDuplicateRejected), Reason: "email",
	}))
	s.Require().NoError(s.store.Append(s.ctx, audit.Event{
		Timestamp: base, ContestID: "winter-2026", Action: string(audit.EventEntryAdmitted),
	}))

	events, err := s.store.ListByContest(s.ctx, "summer-2026")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventDuplicateRejected), events[0].Action)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal("email", events[0].Reason)
	s.Equal("e-1", events[1].EntryID)
	s.Equal("203.0.113.7", events[1].ClientIP)
	s.True(base.Equal(events[1].Timestamp))
}

func (s *AuditStoreSuite) TestAppendJoinsTransaction() {
	errAbort := errors.New("abort")
	err := txcontext.Run(s.ctx, s.pg.DB, func(ctx context.Context, _ txcontext.Executor) error {
		if err := s.store.Append(ctx, audit.Event{
			Timestamp: time.Now(), ContestID: "summer-2026", Action: string(audit.EventEntryAdmitted),
		}); err != nil {
			return err
		}
		return errAbort
	})
	s.ErrorIs(err, errAbort)

	events, err := s.store.ListByContest(s.ctx, "summer-2026")
	s.Require().NoError(err)
	s.Empty(events, "rolled back with the transaction")
}
