package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"entrygate/internal/platform/middleware"
	id "entrygate/pkg/domain"
	dErrors "entrygate/pkg/domain-errors"
	"entrygate/pkg/platform/audit/publisher"
	"entrygate/pkg/platform/httputil"
)

// ActorHeader names the operator behind an admin call. It is recorded on
// repair audit events; the admin token itself carries no identity.
const ActorHeader = "X-Admin-Actor"

const defaultActor = "admin"

func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return defaultActor
}

func pathContest(r *http.Request) (id.ContestID, error) {
	return id.ParseContestID(chi.URLParam(r, "contestId"))
}

func pathEntry(r *http.Request) (id.ContestID, id.EntryID, error) {
	contestID, err := pathContest(r)
	if err != nil {
		return "", id.EntryID{}, err
	}
	entryID, err := id.ParseEntryID(chi.URLParam(r, "entryId"))
	if err != nil {
		return "", id.EntryID{}, err
	}
	return contestID, entryID, nil
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	contestID, entryID, err := pathEntry(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := h.entries.Entry(ctx, contestID, entryID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load entry",
				"request_id", requestID,
				"contest_id", string(contestID),
				"entry_id", entryID.String(),
				"error", err.Error(),
			)
		}
		h.writeError(w, err)
		return
	}

	resp, err := toEntryResponse(entry)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleRepairSchedules re-registers the deferred jobs of one entry.
func (h *Handler) handleRepairSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	contestID, entryID, err := pathEntry(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.entries.RepairSchedules(ctx, contestID, entryID, actor(r)); err != nil {
		h.logger.WarnContext(ctx, "schedule repair failed",
			"request_id", requestID,
			"contest_id", string(contestID),
			"entry_id", entryID.String(),
			"error", err.Error(),
		)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, registerResponse{OK: true, EntryID: entryID.String()})
}

// handleRepairBatch repairs several entries of one contest. Partial failures
// still answer 200; the body reports each entry.
func (h *Handler) handleRepairBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	contestID, err := pathContest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[repairBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.entries.RepairBatch(ctx, contestID, req.parsed, actor(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "batch schedule repair failed",
			"request_id", requestID,
			"contest_id", string(contestID),
			"error", err.Error(),
		)
		h.writeError(w, err)
		return
	}

	resp := toRepairBatchResponse(results, h.exposeErrors)
	h.logger.InfoContext(ctx, "batch schedule repair finished",
		"request_id", requestID,
		"contest_id", string(contestID),
		"scheduled", resp.Scheduled,
		"failed", resp.Failed,
		"not_found", resp.NotFound,
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contestID, err := pathContest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.auditLog.List(ctx, contestID)
	if err != nil {
		if errors.Is(err, publisher.ErrListUnsupported) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "audit log is not queryable with this sink"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", middleware.GetRequestID(ctx),
			"contest_id", string(contestID),
			"error", err.Error(),
		)
		h.writeError(w, err)
		return
	}

	resp := auditLogResponse{ContestID: contestID, Events: make([]auditEvent, len(events))}
	for i, e := range events {
		resp.Events[i] = auditEvent{
			Timestamp: e.Timestamp,
			Category:  string(e.Category),
			Action:    e.Action,
			EntryID:   e.EntryID,
			Reason:    e.Reason,
			RequestID: e.RequestID,
			ActorID:   e.ActorID,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
