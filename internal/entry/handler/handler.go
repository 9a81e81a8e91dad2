// Package handler exposes the admission pipeline over HTTP: the public
// POST /entry route and the operator routes under /admin.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"entrygate/internal/entry/models"
	"entrygate/internal/entry/service"
	"entrygate/internal/platform/metrics"
	"entrygate/internal/platform/middleware"
	id "entrygate/pkg/domain"
	"entrygate/pkg/platform/audit"
	"entrygate/pkg/platform/httputil"
	"entrygate/pkg/platform/middleware/admin"
	"entrygate/pkg/platform/middleware/metadata"
	"entrygate/pkg/platform/middleware/requesttime"
	"entrygate/pkg/requestcontext"
)

// Service defines the pipeline operations the routes call.
type Service interface {
	Register(ctx context.Context, sub *models.Submission, src models.Source) (*service.Outcome, error)
	Entry(ctx context.Context, contestID id.ContestID, entryID id.EntryID) (*models.Entry, error)
	RepairSchedules(ctx context.Context, contestID id.ContestID, entryID id.EntryID, actor string) (*models.Entry, error)
	RepairBatch(ctx context.Context, contestID id.ContestID, entryIDs []id.EntryID, actor string) ([]service.RepairResult, error)
}

// AuditLog reads back recorded audit events of a contest.
type AuditLog interface {
	List(ctx context.Context, contestID id.ContestID) ([]audit.Event, error)
}

// Handler handles the entry and admin endpoints.
type Handler struct {
	logger       *slog.Logger
	entries      Service
	metrics      *metrics.Metrics
	limiter      *middleware.RateLimiter
	auditLog     AuditLog
	corsOrigins  []string
	adminToken   string
	exposeErrors bool
	timeout      time.Duration
}

type Option func(*Handler)

// WithRateLimiter throttles POST /entry per client IP.
func WithRateLimiter(rl *middleware.RateLimiter) Option {
	return func(h *Handler) { h.limiter = rl }
}

func WithCORSOrigins(origins []string) Option {
	return func(h *Handler) { h.corsOrigins = origins }
}

// WithAdminToken enables the /admin routes. Without a token they answer 401.
func WithAdminToken(token string) Option {
	return func(h *Handler) { h.adminToken = token }
}

// WithExposeErrorDetails copies internal error text into 500 responses.
// Meant for staging only.
func WithExposeErrorDetails(expose bool) Option {
	return func(h *Handler) { h.exposeErrors = expose }
}

// WithAuditLog enables GET /admin/contests/{contestId}/audit.
func WithAuditLog(l AuditLog) Option {
	return func(h *Handler) { h.auditLog = l }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New creates a new entry Handler.
func New(entries Service, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:      logger,
		entries:     entries,
		metrics:     m,
		corsOrigins: []string{"*"},
		timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the entry and admin routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Use(metadata.ClientMetadata)
		r.Use(requesttime.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CORS(h.corsOrigins))
			r.Use(middleware.ContentTypeJSON)
			r.Options("/entry", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			if h.limiter != nil {
				r.With(h.limiter.Middleware).Post("/entry", h.handleRegister)
			} else {
				r.Post("/entry", h.handleRegister)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
			r.Get("/admin/contests/{contestId}/entries/{entryId}", h.handleGetEntry)
			r.Post("/admin/contests/{contestId}/entries/{entryId}/schedules", h.handleRepairSchedules)
			r.Post("/admin/contests/{contestId}/schedules/repair", h.handleRepairBatch)
			if h.auditLog != nil {
				r.Get("/admin/contests/{contestId}/audit", h.handleAuditLog)
			}
		})
	})
}

// handleRegister runs one submission through the admission pipeline.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	sub, ok := httputil.DecodeAndPrepare[models.Submission](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	src := models.NewSource(requestcontext.ClientIP(ctx), requestcontext.UserAgent(ctx))
	out, err := h.entries.Register(ctx, sub, src)
	if err != nil {
		if out != nil && out.Entry != nil {
			// Admitted but not fully scheduled; the operator repair route needs the id.
			h.logger.ErrorContext(ctx, "entry needs schedule repair",
				"request_id", requestID,
				"contest_id", string(out.Entry.ContestID),
				"entry_id", out.Entry.EntryID.String(),
				"stage", string(out.Stage),
			)
		}
		h.writeError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, registerResponse{OK: true, EntryID: out.Entry.EntryID.String()})
}

// writeError hides server error text unless details are exposed.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	httputil.WriteErrorWithDetails(w, err, h.exposeErrors)
}
