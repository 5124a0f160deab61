package domain

import "time"

// Audit actions recorded for every mutating lifecycle operation.
const (
	AuditTaskCreated  = "task.created"
	AuditTaskUpdated  = "task.updated"
	AuditTaskPaused   = "task.paused"
	AuditTaskResumed  = "task.resumed"
	AuditTaskCanceled = "task.canceled"
	AuditTaskDeleted  = "task.deleted"
	AuditTaskRunNow   = "task.run_now"
	AuditTaskSnoozed  = "task.snoozed"
	AuditEventPublish = "event.published"
	AuditRunSucceeded = "run.succeeded"
)

// AuditRecord is an immutable trace of one actor performing one mutating
// operation against one subject (usually a task).
type AuditRecord struct {
	ID string

	ActorAgentID string // empty for system-originated records
	Action       string
	SubjectID    string
	Details      string

	CreatedAt time.Time
}
