package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordinaut/ordinaut/internal/authz"
	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/lifecycle"
	"github.com/ordinaut/ordinaut/internal/store"
	"github.com/ordinaut/ordinaut/internal/transport/http/middleware"
)

type TaskHandler struct {
	svc    *lifecycle.Service
	logger *slog.Logger
}

func NewTaskHandler(svc *lifecycle.Service, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger.With("component", "task_handler")}
}

type createTaskRequest struct {
	Title               string              `json:"title"                 binding:"required,max=256"`
	Description         string              `json:"description"`
	ScheduleKind        domain.ScheduleKind `json:"schedule_kind"         binding:"required,oneof=cron rrule once event"`
	ScheduleExpr        string              `json:"schedule_expr"`
	Timezone            string              `json:"timezone"`
	Payload             interface{}         `json:"payload"`
	Priority            int                 `json:"priority"              binding:"omitempty,min=1,max=9"`
	DedupeKey           string              `json:"dedupe_key"`
	DedupeWindowSeconds int                 `json:"dedupe_window_seconds" binding:"omitempty,min=0"`
	MaxRetries          int                 `json:"max_retries"           binding:"omitempty,min=0,max=50"`
	Backoff             domain.Backoff      `json:"backoff"               binding:"omitempty,oneof=exponential_jitter linear fixed"`
	ConcurrencyKey      string              `json:"concurrency_key"`
}

type taskResponse struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	CreatedBy           string              `json:"created_by"`
	ScheduleKind        domain.ScheduleKind `json:"schedule_kind"`
	ScheduleExpr        string              `json:"schedule_expr"`
	Timezone            string              `json:"timezone"`
	Payload             interface{}         `json:"payload,omitempty"`
	Status              domain.Status       `json:"status"`
	Priority            int                 `json:"priority"`
	DedupeKey           string              `json:"dedupe_key,omitempty"`
	DedupeWindowSeconds int                 `json:"dedupe_window_seconds,omitempty"`
	MaxRetries          int                 `json:"max_retries"`
	Backoff             domain.Backoff      `json:"backoff"`
	ConcurrencyKey      string              `json:"concurrency_key,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func toTaskResponse(t *domain.Task) taskResponse {
	resp := taskResponse{
		ID:                  t.ID,
		Title:               t.Title,
		Description:         t.Description,
		CreatedBy:           t.CreatedBy,
		ScheduleKind:        t.ScheduleKind,
		ScheduleExpr:        t.ScheduleExpr,
		Timezone:            t.Timezone,
		Status:              t.Status,
		Priority:            t.Priority,
		DedupeKey:           t.DedupeKey,
		DedupeWindowSeconds: t.DedupeWindowSeconds,
		MaxRetries:          t.Retry.MaxRetries,
		Backoff:             t.Retry.Backoff,
		ConcurrencyKey:      t.ConcurrencyKey,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if len(t.Payload) > 0 {
		resp.Payload = t.Payload
	}
	return resp
}

func writeTaskError(c *gin.Context, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
	case errors.Is(err, domain.ErrTaskNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": errTaskNotActive})
	case errors.Is(err, domain.ErrTaskNotPaused):
		c.JSON(http.StatusConflict, gin.H{"error": errTaskNotPaused})
	case errors.Is(err, domain.ErrTaskCanceled):
		c.JSON(http.StatusConflict, gin.H{"error": errTaskCanceled})
	case errors.Is(err, domain.ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidSchedule})
	case errors.Is(err, domain.ErrInvalidTimezone):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidTimezone})
	case errors.Is(err, domain.ErrInvalidPriority):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidPriority})
	case errors.Is(err, domain.ErrInvalidRetryPolicy):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRetry})
	case errors.Is(err, authz.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": errForbidden})
	default:
		logger.Error(op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var payload []byte
	if req.Payload != nil {
		payload, _ = json.Marshal(req.Payload)
	}

	task, err := h.svc.CreateTask(c.Request.Context(), middleware.ActorFromContext(c), lifecycle.CreateTaskInput{
		Title:               req.Title,
		Description:         req.Description,
		ScheduleKind:        req.ScheduleKind,
		ScheduleExpr:        req.ScheduleExpr,
		Timezone:            req.Timezone,
		Payload:             payload,
		Priority:            req.Priority,
		DedupeKey:           req.DedupeKey,
		DedupeWindowSeconds: req.DedupeWindowSeconds,
		Retry:               domain.RetryPolicy{MaxRetries: req.MaxRetries, Backoff: req.Backoff},
		ConcurrencyKey:      req.ConcurrencyKey,
	})
	if err != nil {
		writeTaskError(c, h.logger, "create task", err)
		return
	}

	c.JSON(http.StatusCreated, toTaskResponse(task))
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeTaskError(c, h.logger, "get task", err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	limit = clampLimit(limit)

	cursor, err := decodeCursor(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRequest})
		return
	}

	tasks, err := h.svc.ListTasks(c.Request.Context(), store.ListTasksInput{
		Status:       domain.Status(c.Query("status")),
		CreatedBy:    c.Query("created_by"),
		ScheduleKind: domain.ScheduleKind(c.Query("schedule_kind")),
		Cursor:       cursor,
		Limit:        limit + 1,
	})
	if err != nil {
		writeTaskError(c, h.logger, "list tasks", err)
		return
	}

	var nextCursor *string
	if len(tasks) == limit+1 {
		last := tasks[limit]
		nc := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &nc
		tasks = tasks[:limit]
	}

	items := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		items[i] = toTaskResponse(t)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": items, "next_cursor": nextCursor})
}

type updateTaskRequest struct {
	Title               *string             `json:"title"`
	Description         *string             `json:"description"`
	ScheduleKind        *domain.ScheduleKind `json:"schedule_kind"`
	ScheduleExpr        *string             `json:"schedule_expr"`
	Timezone            *string             `json:"timezone"`
	Payload             interface{}         `json:"payload"`
	Priority            *int                `json:"priority"`
	DedupeKey           *string             `json:"dedupe_key"`
	DedupeWindowSeconds *int                `json:"dedupe_window_seconds"`
	MaxRetries          *int                `json:"max_retries"`
	Backoff             *domain.Backoff     `json:"backoff"`
	ConcurrencyKey      *string             `json:"concurrency_key"`
}

func (h *TaskHandler) Update(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := lifecycle.UpdateTaskInput{
		Title:               req.Title,
		Description:         req.Description,
		ScheduleKind:        req.ScheduleKind,
		ScheduleExpr:        req.ScheduleExpr,
		Timezone:            req.Timezone,
		Priority:            req.Priority,
		DedupeKey:           req.DedupeKey,
		DedupeWindowSeconds: req.DedupeWindowSeconds,
		ConcurrencyKey:      req.ConcurrencyKey,
	}
	if req.Payload != nil {
		input.Payload, _ = json.Marshal(req.Payload)
	}
	if req.MaxRetries != nil || req.Backoff != nil {
		retry := domain.RetryPolicy{}
		if req.MaxRetries != nil {
			retry.MaxRetries = *req.MaxRetries
		}
		if req.Backoff != nil {
			retry.Backoff = *req.Backoff
		}
		input.Retry = &retry
	}

	task, err := h.svc.UpdateTask(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id"), input)
	if err != nil {
		writeTaskError(c, h.logger, "update task", err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) Pause(c *gin.Context) {
	if err := h.svc.PauseTask(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id")); err != nil {
		writeTaskError(c, h.logger, "pause task", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Resume(c *gin.Context) {
	if err := h.svc.ResumeTask(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id")); err != nil {
		writeTaskError(c, h.logger, "resume task", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Cancel(c *gin.Context) {
	if err := h.svc.CancelTask(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id")); err != nil {
		writeTaskError(c, h.logger, "cancel task", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteTask(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id")); err != nil {
		writeTaskError(c, h.logger, "delete task", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) RunNow(c *gin.Context) {
	firing, err := h.svc.RunNow(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id"))
	if err != nil {
		writeTaskError(c, h.logger, "run now", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"firing_id": firing.ID, "task_id": firing.TaskID, "run_at": firing.RunAt})
}

type snoozeTaskRequest struct {
	DeltaSeconds int `json:"delta_seconds" binding:"required,min=1"`
}

func (h *TaskHandler) Snooze(c *gin.Context) {
	var req snoozeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.SnoozeTask(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id"),
		time.Duration(req.DeltaSeconds)*time.Second)
	if err != nil {
		writeTaskError(c, h.logger, "snooze task", err)
		return
	}
	c.Status(http.StatusNoContent)
}
