package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"entrygate/internal/entry/identity"
	"entrygate/internal/entry/metrics"
	"entrygate/internal/entry/models"
	"entrygate/internal/entry/service/mocks"
	"entrygate/internal/entry/store/memory"
	"entrygate/internal/entry/validator"
	"entrygate/internal/schedule"
	id "entrygate/pkg/domain"
	dErrors "entrygate/pkg/domain-errors"
	"entrygate/pkg/platform/audit"
)

//go:generate mockgen -source=service.go -destination=mocks/service_mocks.go -package=mocks
type PipelineSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.InMemoryEntryStore
	confirmer *mocks.MockConfirmer
	scheduler *mocks.MockScheduler
	metrics   *metrics.Metrics
	pipeline  *Pipeline

	mu     sync.Mutex
	events []audit.Event
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.store = memory.New()
	s.confirmer = mocks.NewMockConfirmer(ctrl)
	s.scheduler = mocks.NewMockScheduler(ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.events = nil

	auditor := mocks.NewMockAuditPublisher(ctrl)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = append(s.events, e)
		return nil
	}).AnyTimes()

	s.pipeline = NewPipeline(
		validator.New(nil),
		NewAdmission(s.store, identity.NewHasher("pepper")),
		s.confirmer,
		s.scheduler,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(auditor),
	)
}

func (s *PipelineSuite) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func (s *PipelineSuite) lastEvent() audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().NotEmpty(s.events)
	return s.events[len(s.events)-1]
}

func (s *PipelineSuite) outcomes(outcome string) float64 {
	return testutil.ToFloat64(s.metrics.Outcomes.WithLabelValues(outcome))
}

func submission() *models.Submission {
	return &models.Submission{
		ContestID: "summer-2026",
		DrawAtISO: "2026-06-12T19:00:00Z",
		FirstName: "Sam",
		Email:     " A@B.com ",
		Phone:     "(555) 123-4567",
		Consent:   true,
	}
}

// admitOne registers a submission with both downstream stages succeeding.
func (s *PipelineSuite) admitOne(sub *models.Submission) *models.Entry {
	s.confirmer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.scheduler.EXPECT().Schedule(gomock.Any(), gomock.Any()).Return(nil)
	out, err := s.pipeline.Register(s.ctx, sub, models.Source{})
	s.Require().NoError(err)
	return out.Entry
}

func (s *PipelineSuite) TestRegister_Success() {
	var confirmed, scheduled *models.Entry
	s.confirmer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *models.Entry) error {
		confirmed = e
		return nil
	})
	s.scheduler.EXPECT().Schedule(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *models.Entry) error {
		scheduled = e
		return nil
	})

	out, err := s.pipeline.Register(s.ctx, submission(), models.Source{IP: "203.0.113.9"})

	s.Require().NoError(err)
	s.Equal(StageDone, out.Stage)
	s.Nil(out.ConfirmationErr)
	s.Require().NotNil(out.Entry)
	s.False(out.Entry.EntryID.IsNil())
	s.Equal("a@b.com", out.Entry.Email)
	s.Equal("5551234567", out.Entry.Phone)
	s.Equal(id.LocaleEN, out.Entry.Locale)
	s.Same(out.Entry, confirmed)
	s.Same(out.Entry, scheduled)
	s.Equal(3, s.store.Len())

	s.Equal([]string{
		string(audit.EventEntryAdmitted),
		string(audit.EventSchedulesRegistered),
	}, s.actions())
	s.Equal(1.0, s.outcomes(metrics.OutcomeAdmitted))
}

func (s *PipelineSuite) TestRegister_MissingContestIDWritesNothing() {
	sub := submission()
	sub.ContestID = ""

	out, err := s.pipeline.Register(s.ctx, sub, models.Source{})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Equal("contestId required", err.Error())
	s.Equal(StageValidate, out.Stage)
	s.Nil(out.Entry)
	s.Equal(0, s.store.Len())
	s.Empty(s.actions())
	s.Equal(1.0, s.outcomes(metrics.OutcomeInvalid))
}

func (s *PipelineSuite) TestRegister_Duplicate() {
	s.admitOne(submission())

	again := submission()
	again.Email = "someone.else@example.com"
	out, err := s.pipeline.Register(s.ctx, again, models.Source{})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateEntry))
	s.Equal(StageAdmit, out.Stage)
	s.Nil(out.Entry)
	s.Equal(3, s.store.Len())

	event := s.lastEvent()
	s.Equal(string(audit.EventDuplicateRejected), event.Action)
	s.Equal(audit.CategorySecurity, event.Category)
	s.Len(event.SubjectHash, 12)
	s.Equal(1.0, s.outcomes(metrics.OutcomeDuplicate))
}

func (s *PipelineSuite) TestRegister_ConfirmationFailureStillSchedules() {
	sendErr := dErrors.Wrap(errors.New("mailbox unavailable"), dErrors.CodeNotificationSendFailed, "failed to send confirmation")
	s.confirmer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sendErr)
	s.scheduler.EXPECT().Schedule(gomock.Any(), gomock.Any()).Return(nil)

	out, err := s.pipeline.Register(s.ctx, submission(), models.Source{})

	s.Require().NoError(err)
	s.Equal(StageDone, out.Stage)
	s.NotNil(out.Entry)
	s.ErrorIs(out.ConfirmationErr, sendErr)
	s.Equal([]string{
		string(audit.EventEntryAdmitted),
		string(audit.EventConfirmationFailed),
		string(audit.EventSchedulesRegistered),
	}, s.actions())
	s.Equal(1.0, s.outcomes(metrics.OutcomeConfirmationFailed))
}

func (s *PipelineSuite) TestRegister_SchedulingFailure() {
	incomplete := &schedule.IncompleteError{
		Failed: []schedule.Kind{schedule.KindDraw},
		Errs:   []error{errors.New("throttled")},
	}
	s.confirmer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.scheduler.EXPECT().Schedule(gomock.Any(), gomock.Any()).
		Return(dErrors.Wrap(incomplete, dErrors.CodeSchedulingFailed, "failed to register deferred notifications"))

	out, err := s.pipeline.Register(s.ctx, submission(), models.Source{})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeSchedulingFailed))
	s.Equal(StageSchedule, out.Stage)
	s.Require().NotNil(out.Entry, "the entry stands")
	s.Equal(3, s.store.Len())

	event := s.lastEvent()
	s.Equal(string(audit.EventSchedulesIncomplete), event.Action)
	s.Equal("draw", event.Reason)
	s.Equal(out.Entry.EntryID.String(), event.EntryID)
	s.Equal(1.0, s.outcomes(metrics.OutcomeSchedulingFailed))
}

func (s *PipelineSuite) TestRepairSchedules() {
	entry := s.admitOne(submission())

	s.Run("re-registers the stored entry", func() {
		s.scheduler.EXPECT().Schedule(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *models.Entry) error {
			s.Equal(entry.EntryID, e.EntryID)
			s.Equal(entry.ReminderAt, e.ReminderAt)
			return nil
		})

		got, err := s.pipeline.RepairSchedules(s.ctx, entry.ContestID, entry.EntryID, "ops@example.com")

		s.Require().NoError(err)
		s.Equal(entry.EntryID, got.EntryID)
		event := s.lastEvent()
		s.Equal(string(audit.EventSchedulesRepaired), event.Action)
		s.Equal("ops@example.com", event.ActorID)
	})

	s.Run("unknown entry", func() {
		_, err := s.pipeline.RepairSchedules(s.ctx, entry.ContestID, id.NewEntryID(), "ops@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("wrong contest", func() {
		_, err := s.pipeline.RepairSchedules(s.ctx, "winter-2026", entry.EntryID, "ops@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PipelineSuite) TestRepairBatch() {
	first := s.admitOne(submission())
	other := submission()
	other.Email = "kim@example.com"
	other.Phone = "555 987 6543"
	second := s.admitOne(other)
	missing := id.NewEntryID()

	s.scheduler.EXPECT().Schedule(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *models.Entry) error {
		if e.EntryID == second.EntryID {
			return dErrors.Wrap(&schedule.IncompleteError{
				Failed: []schedule.Kind{schedule.KindReminder},
				Errs:   []error{errors.New("throttled")},
			}, dErrors.CodeSchedulingFailed, "failed to register deferred notifications")
		}
		return nil
	}).Times(2)

	results, err := s.pipeline.RepairBatch(s.ctx, "summer-2026", []id.EntryID{first.EntryID, missing, second.EntryID}, "ops")

	s.Require().NoError(err)
	s.Require().Len(results, 3)
	s.Equal(RepairResult{EntryID: first.EntryID, Status: RepairScheduled}, results[0])
	s.Equal(RepairResult{EntryID: missing, Status: RepairNotFound}, results[1])
	s.Equal(second.EntryID, results[2].EntryID)
	s.Equal(RepairFailed, results[2].Status)
	s.Equal([]schedule.Kind{schedule.KindReminder}, results[2].FailedKinds)
	s.Error(results[2].Err)
}

func (s *PipelineSuite) TestRepairBatch_Bounds() {
	_, err := s.pipeline.RepairBatch(s.ctx, "summer-2026", nil, "ops")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	tooMany := make([]id.EntryID, MaxRepairBatch+1)
	for i := range tooMany {
		tooMany[i] = id.NewEntryID()
	}
	_, err = s.pipeline.RepairBatch(s.ctx, "summer-2026", tooMany, "ops")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
