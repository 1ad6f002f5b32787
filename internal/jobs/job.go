package jobs

import "time"

// Job is a snapshot of one script execution. Values handed out by the
// Registry are deep copies and never alias the canonical record.
type Job struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Status    Status     `json:"status"`
	Output    *string    `json:"output"`
	Error     *string    `json:"error"`
}

// Clone returns a copy of j that shares no pointers with it.
func (j Job) Clone() Job {
	out := j
	if j.StartTime != nil {
		t := *j.StartTime
		out.StartTime = &t
	}
	if j.EndTime != nil {
		t := *j.EndTime
		out.EndTime = &t
	}
	if j.Output != nil {
		s := *j.Output
		out.Output = &s
	}
	if j.Error != nil {
		s := *j.Error
		out.Error = &s
	}
	return out
}

// markExecuting moves a queued job to executing.
func markExecuting(now time.Time) func(*Job) bool {
	return func(j *Job) bool {
		if j.Status != StatusQueued {
			return false
		}
		j.Status = StatusExecuting
		j.StartTime = &now
		return true
	}
}

// markCompleted records a successful run.
func markCompleted(output string, now time.Time) func(*Job) bool {
	return func(j *Job) bool {
		if j.Status != StatusExecuting {
			return false
		}
		j.Status = StatusCompleted
		j.Output = &output
		j.Error = nil
		j.EndTime = &now
		return true
	}
}

// markFailed records a failure. It applies to queued jobs as well so that
// an interrupted blocking wait can fail a job that never started.
func markFailed(msg string, now time.Time) func(*Job) bool {
	return func(j *Job) bool {
		if j.Status.Terminal() {
			return false
		}
		j.Status = StatusFailed
		j.Error = &msg
		j.Output = nil
		j.EndTime = &now
		return true
	}
}

// markStopped records a cancellation.
func markStopped(now time.Time) func(*Job) bool {
	return func(j *Job) bool {
		if j.Status.Terminal() {
			return false
		}
		j.Status = StatusStopped
		j.Output = nil
		j.Error = nil
		j.EndTime = &now
		return true
	}
}
