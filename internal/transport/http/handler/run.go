package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/lifecycle"
	"github.com/ordinaut/ordinaut/internal/store"
)

type RunHandler struct {
	svc    *lifecycle.Service
	logger *slog.Logger
}

func NewRunHandler(svc *lifecycle.Service, logger *slog.Logger) *RunHandler {
	return &RunHandler{svc: svc, logger: logger.With("component", "run_handler")}
}

type runResponse struct {
	ID         string        `json:"id"`
	TaskID     string        `json:"task_id"`
	FiringID   string        `json:"firing_id"`
	LockedBy   string        `json:"locked_by"`
	Attempt    int           `json:"attempt"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Outcome    domain.Outcome `json:"outcome"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

func toRunResponse(r *domain.Run) runResponse {
	return runResponse{
		ID:         r.ID,
		TaskID:     r.TaskID,
		FiringID:   r.FiringID,
		LockedBy:   r.LockedBy,
		Attempt:    r.Attempt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Outcome:    r.Outcome,
		Output:     r.Output,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
	}
}

func writeRunError(c *gin.Context, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errRunNotFound})
	case errors.Is(err, domain.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
	default:
		logger.Error(op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeRunError(c, h.logger, "get run", err)
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

func (h *RunHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	limit = clampLimit(limit)

	cursor, err := decodeCursor(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRequest})
		return
	}

	runs, err := h.svc.ListRuns(c.Request.Context(), store.ListRunsInput{
		TaskID:  c.Query("task_id"),
		Outcome: domain.Outcome(c.Query("outcome")),
		Cursor:  cursor,
		Limit:   limit + 1,
	})
	if err != nil {
		writeRunError(c, h.logger, "list runs", err)
		return
	}

	var nextCursor *string
	if len(runs) == limit+1 {
		last := runs[limit]
		nc := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &nc
		runs = runs[:limit]
	}

	items := make([]runResponse, len(runs))
	for i, r := range runs {
		items[i] = toRunResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": items, "next_cursor": nextCursor})
}

func (h *RunHandler) TaskStats(c *gin.Context) {
	periodSeconds, _ := strconv.Atoi(c.Query("period_seconds"))
	if periodSeconds <= 0 {
		periodSeconds = 86400
	}

	stats, err := h.svc.TaskStats(c.Request.Context(), store.TaskStatsInput{
		TaskID: c.Param("id"),
		Period: time.Duration(periodSeconds) * time.Second,
	})
	if err != nil {
		writeRunError(c, h.logger, "task stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
