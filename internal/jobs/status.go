package jobs

// Status represents the lifecycle state of a script job. These values
// are exposed verbatim in the HTTP API (job.status).
//
// Centralizing these here avoids scattering string
// literals like "queued" or "completed" across
// packages.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusExecuting, StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same non-terminal status is allowed so that mutators can
// touch other fields.
//
// queued -> failed only happens when a blocking caller gives up waiting
// before a worker picked the job up.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if from == to {
		return true
	}
	switch from {
	case StatusQueued:
		return to == StatusExecuting || to == StatusStopped || to == StatusFailed
	case StatusExecuting:
		return to.Terminal()
	}
	return false
}
