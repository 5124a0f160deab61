package handler

const (
	errInternalServer  = "internal server error"
	errTaskNotFound    = "task not found"
	errRunNotFound     = "run not found"
	errTaskNotActive   = "task is not active"
	errTaskNotPaused   = "task is not paused"
	errTaskCanceled    = "task is canceled"
	errForbidden       = "actor lacks required scope"
	errInvalidSchedule = "invalid schedule expression"
	errInvalidTimezone = "invalid IANA timezone"
	errInvalidPriority = "priority must be between 1 and 9"
	errInvalidRetry    = "invalid retry policy"
	errInvalidRequest  = "invalid request body"
)
