package http

import (
	"context"

	"scriptd/internal/jobs"
)

// ScriptService is the job core the handlers call into.
type ScriptService interface {
	Submit(ctx context.Context, code string, blocking bool) (jobs.Job, error)
	Get(id string) (jobs.Job, error)
	List(opts jobs.ListOptions) []jobs.Job
	Stop(id string) bool
	Remove(id string)
}

// ErrorResponse is the error envelope for every non-2xx response.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// AckResponse acknowledges stop and delete requests.
type AckResponse struct {
	Success bool `json:"success"`
}
