package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"entrygate/internal/notify/handler/mocks"
	"entrygate/internal/schedule"
	dErrors "entrygate/pkg/domain-errors"
	"entrygate/pkg/testutil"
)

const testToken = "dispatch-secret"

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Dispatcher
type DispatchHandlerSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	dispatcher *mocks.MockDispatcher
	router     chi.Router
}

func TestDispatchHandlerSuite(t *testing.T) {
	suite.Run(t, new(DispatchHandlerSuite))
}

func (s *DispatchHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.dispatcher = mocks.NewMockDispatcher(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.dispatcher, testToken, logger, nil).Register(s.router)
}

func (s *DispatchHandlerSuite) post(body any, token string) *http.Request {
	return testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, DispatchPath, body), token)
}

func (s *DispatchHandlerSuite) reminderPayload() schedule.Payload {
	return schedule.Payload{
		ContestID: "summer-2026",
		EntryID:   "6f1c1d2e-7a7d-4b8e-9a63-2d4c1f0e5b21",
		Email:     "sam@example.com",
		FirstName: "Sam",
		Locale:    "fr",
		Template:  schedule.KindReminder,
	}
}

func (s *DispatchHandlerSuite) TestDispatches() {
	p := s.reminderPayload()
	s.dispatcher.EXPECT().Dispatch(gomock.Any(), p).Return(nil)

	rr := testutil.DoRequest(s.router, s.post(p, testToken))

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "ok", true)
}

func (s *DispatchHandlerSuite) TestRejectsMissingToken() {
	rr := testutil.DoRequest(s.router, s.post(s.reminderPayload(), ""))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *DispatchHandlerSuite) TestRejectsWrongToken() {
	rr := testutil.DoRequest(s.router, s.post(s.reminderPayload(), "guess"))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *DispatchHandlerSuite) TestMalformedBody() {
	req := testutil.WithBearer(testutil.NewRequestWithBody(s.T(), http.MethodPost, DispatchPath, "{"), testToken)

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid request body")
}

func (s *DispatchHandlerSuite) TestInvalidPayloadIsClientError() {
	p := s.reminderPayload()
	p.Template = "birthday"
	s.dispatcher.EXPECT().Dispatch(gomock.Any(), p).
		Return(dErrors.New(dErrors.CodeInvalidInput, "invalid template"))

	rr := testutil.DoRequest(s.router, s.post(p, testToken))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid template")
}

func (s *DispatchHandlerSuite) TestSendFailureIsServerError() {
	p := s.reminderPayload()
	s.dispatcher.EXPECT().Dispatch(gomock.Any(), p).
		Return(dErrors.Wrap(errors.New("ses throttled"), dErrors.CodeNotificationSendFailed, "failed to send reminder notification"))

	rr := testutil.DoRequest(s.router, s.post(p, testToken))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "server_error")
}
