// Package api serves the status API: run history, declared jobs, and
// schedule control for the sync daemon.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"groupsync/internal/config"
	"groupsync/internal/domain"
	"groupsync/internal/middleware"
	"groupsync/internal/report"
)

// ScheduleReloader re-reads the jobs file and reschedules. The scheduler
// implements it.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
}

// Handler serves the status API endpoints.
type Handler struct {
	store    domain.RunStore
	jobsPath string           // empty when no jobs file is configured
	reloader ScheduleReloader // nil when the scheduler is not running
	logger   *slog.Logger
}

// NewHandler creates a Handler. store is required; jobsPath and reloader are
// optional.
func NewHandler(store domain.RunStore, jobsPath string, reloader ScheduleReloader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, jobsPath: jobsPath, reloader: reloader, logger: logger}
}

// Health reports liveness. Public, no auth.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

type jobView struct {
	Name     string          `json:"name"`
	Schedule string          `json:"schedule"`
	Groups   []string        `json:"groups,omitempty"`
	Target   string          `json:"target,omitempty"`
	TargetID string          `json:"target_id,omitempty"`
	Mode     string          `json:"mode"`
	Filters  []jobFilterView `json:"filters,omitempty"`
	Clear    bool            `json:"clear"`
	DryRun   bool            `json:"dry_run"`
	Limit    int             `json:"limit,omitempty"`
}

type jobFilterView struct {
	Platform string `json:"platform"`
	Version  string `json:"version"`
	Op       string `json:"op,omitempty"`
}

// ListJobs reports the declared sync jobs. The jobs file is the source of
// truth, so it is re-read on every request.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	views := []jobView{}
	if h.jobsPath != "" {
		jobs, err := config.LoadJobs(h.jobsPath)
		if err != nil {
			h.log(r).Warn("jobs file unreadable", "path", h.jobsPath, "error", err)
			writeError(w, http.StatusInternalServerError, "jobs file unreadable")
			return
		}
		for _, job := range jobs {
			v := jobView{
				Name:     job.Name,
				Schedule: job.Schedule,
				Groups:   job.SourceGroups,
				Target:   job.TargetGroup,
				TargetID: job.TargetID,
				Mode:     job.Mode,
				Clear:    job.ClearFirst(),
				DryRun:   job.DryRun,
				Limit:    job.Limit,
			}
			for _, f := range job.Filters {
				v.Filters = append(v.Filters, jobFilterView(f))
			}
			views = append(views, v)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": views})
}

type runSummaryView struct {
	RunID         string    `json:"run_id"`
	TargetGroup   string    `json:"target_group"`
	DryRun        bool      `json:"dry_run"`
	Added         int       `json:"added"`
	AlreadyMember int       `json:"already_member"`
	Removed       int       `json:"removed"`
	Failed        int       `json:"failed"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// ListRuns reports archived runs, newest first. ?limit= caps the page size.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.log(r).Warn("list runs failed", "error", err)
		writeError(w, httpStatusFromDomainError(err), "could not list runs")
		return
	}

	views := make([]runSummaryView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runSummaryView{
			RunID:         run.RunID,
			TargetGroup:   run.TargetGroup,
			DryRun:        run.DryRun,
			Added:         run.Added,
			AlreadyMember: run.AlreadyMember,
			Removed:       run.Removed,
			Failed:        run.Failed,
			StartedAt:     run.StartedAt,
			FinishedAt:    run.FinishedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": views})
}

// GetRun reports one archived run with its per-member results.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, httpStatusFromDomainError(err), err.Error())
		return
	}

	data, err := report.Marshal(run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not render run")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ReloadSchedule re-reads the jobs file and reschedules all jobs.
func (h *Handler) ReloadSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.reloader.Reload(r.Context()); err != nil {
		h.log(r).Warn("schedule reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.log(r).Info("schedule reloaded")
	w.WriteHeader(http.StatusNoContent)
}

// log scopes the handler logger to one request for correlation.
func (h *Handler) log(r *http.Request) *slog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": message,
	})
}
