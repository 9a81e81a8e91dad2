// Package handler exposes the dispatcher to the scheduling backend that fires
// deferred jobs.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"entrygate/internal/platform/metrics"
	"entrygate/internal/platform/middleware"
	"entrygate/internal/schedule"
	dErrors "entrygate/pkg/domain-errors"
	"entrygate/pkg/platform/httputil"
	"entrygate/pkg/platform/middleware/admin"
)

// DispatchPath is the route a fired reminder or draw job is delivered to.
const DispatchPath = "/internal/notifications/dispatch"

// Dispatcher sends the message of a fired job.
type Dispatcher interface {
	Dispatch(ctx context.Context, p schedule.Payload) error
}

type Handler struct {
	logger     *slog.Logger
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	token      string
	timeout    time.Duration
}

func New(dispatcher Dispatcher, token string, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:     logger,
		dispatcher: dispatcher,
		metrics:    m,
		token:      token,
		timeout:    30 * time.Second,
	}
}

// Register mounts the dispatch route behind the bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Use(admin.RequireBearerToken(h.token, h.logger))
		r.Post(DispatchPath, h.handleDispatch)
	})
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleDispatch sends one deferred notification.
func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	payload, ok := httputil.DecodeAndPrepare[schedule.Payload](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.dispatcher.Dispatch(ctx, *payload); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			h.logger.WarnContext(ctx, "invalid dispatch payload",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "dispatch failed",
			"request_id", requestID,
			"entry_id", payload.EntryID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "dispatch failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}
