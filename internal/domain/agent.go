package domain

import (
	"errors"
	"time"
)

var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrAgentNameConflict = errors.New("agent with this name already exists")
	ErrSystemAgentDelete = errors.New("the system agent cannot be deleted")
)

// SystemAgentName is the name of the built-in agent that owns
// system-originated tasks (seeded migrations, internal housekeeping).
const SystemAgentName = "system"

// Agent is the stable identity behind every task and audit record. Its
// Scopes are opaque strings here — internal/authz owns the scope names
// and the actual authorization check against an actor built from this
// record.
type Agent struct {
	ID        string
	Name      string
	Scopes    []string
	CreatedAt time.Time
}
