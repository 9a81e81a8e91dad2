package handler

import (
	"time"

	"entrygate/internal/entry/models"
	"entrygate/internal/entry/service"
	"entrygate/internal/schedule"
	id "entrygate/pkg/domain"
	dErrors "entrygate/pkg/domain-errors"
	pstrings "entrygate/pkg/platform/strings"
)

type registerResponse struct {
	OK      bool   `json:"ok"`
	EntryID string `json:"entryId"`
}

type scheduleView struct {
	Kind   schedule.Kind `json:"kind"`
	Name   string        `json:"name"`
	FireAt time.Time     `json:"fireAt"`
}

// entryResponse is the operator view of an entry, including the names its
// deferred jobs are registered under.
type entryResponse struct {
	ContestID  id.ContestID      `json:"contestId"`
	EntryID    string            `json:"entryId"`
	CreatedAt  time.Time         `json:"createdAt"`
	Locale     id.Locale         `json:"locale"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Profile    map[string]string `json:"profile,omitempty"`
	Flags      map[string]bool   `json:"flags,omitempty"`
	Consent    bool              `json:"consent"`
	DrawAt     time.Time         `json:"drawAt"`
	ReminderAt time.Time         `json:"reminderAt"`
	Source     models.Source     `json:"source"`
	Schedules  []scheduleView    `json:"schedules"`
}

func toEntryResponse(e *models.Entry) (entryResponse, error) {
	jobs, err := schedule.JobsFor(e)
	if err != nil {
		return entryResponse{}, err
	}
	views := make([]scheduleView, len(jobs))
	for i, j := range jobs {
		views[i] = scheduleView{Kind: j.Kind, Name: j.Name, FireAt: j.FireAt}
	}
	return entryResponse{
		ContestID:  e.ContestID,
		EntryID:    e.EntryID.String(),
		CreatedAt:  e.CreatedAt,
		Locale:     e.Locale,
		Email:      e.Email,
		Phone:      e.Phone,
		Profile:    e.Profile,
		Flags:      e.Flags,
		Consent:    e.Consent,
		DrawAt:     e.DrawAt,
		ReminderAt: e.ReminderAt,
		Source:     e.Source,
		Schedules:  views,
	}, nil
}

type repairBatchRequest struct {
	EntryIDs []string `json:"entryIds"`

	parsed []id.EntryID
}

// Validate parses the ids once; repeats are repaired once.
func (r *repairBatchRequest) Validate() error {
	raw := pstrings.DedupeAndTrimLower(r.EntryIDs)
	if len(raw) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "entryIds required")
	}
	if len(raw) > service.MaxRepairBatch {
		return dErrors.New(dErrors.CodeInvalidInput, "too many entryIds")
	}
	r.parsed = make([]id.EntryID, 0, len(raw))
	for _, s := range raw {
		entryID, err := id.ParseEntryID(s)
		if err != nil {
			return err
		}
		r.parsed = append(r.parsed, entryID)
	}
	return nil
}

type repairResult struct {
	EntryID     string          `json:"entryId"`
	Status      string          `json:"status"`
	FailedKinds []schedule.Kind `json:"failedKinds,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type repairBatchResponse struct {
	OK        bool           `json:"ok"`
	Scheduled int            `json:"scheduled"`
	Failed    int            `json:"failed"`
	NotFound  int            `json:"notFound"`
	Results   []repairResult `json:"results"`
}

func toRepairBatchResponse(results []service.RepairResult, exposeErrors bool) repairBatchResponse {
	resp := repairBatchResponse{Results: make([]repairResult, len(results))}
	for i, r := range results {
		out := repairResult{
			EntryID:     r.EntryID.String(),
			Status:      string(r.Status),
			FailedKinds: r.FailedKinds,
		}
		switch r.Status {
		case service.RepairScheduled:
			resp.Scheduled++
		case service.RepairNotFound:
			resp.NotFound++
		case service.RepairFailed:
			resp.Failed++
			if exposeErrors && r.Err != nil {
				out.Error = r.Err.Error()
			}
		}
		resp.Results[i] = out
	}
	resp.OK = resp.Failed == 0 && resp.NotFound == 0
	return resp
}

type auditLogResponse struct {
	ContestID id.ContestID `json:"contestId"`
	Events    []auditEvent `json:"events"`
}

type auditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	EntryID   string    `json:"entryId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	ActorID   string    `json:"actorId,omitempty"`
}
