package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"scriptd/internal/jobs"
)

func TestNewMessageTypes(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	submitted := NewMessage(jobs.Event{Job: jobs.Job{ID: "a", Status: jobs.StatusQueued}}, at)
	if submitted.Type != "job.submitted" || submitted.From != "" {
		t.Fatalf("unexpected submitted message: %+v", submitted)
	}

	stopped := NewMessage(jobs.Event{
		Job:  jobs.Job{ID: "a", Status: jobs.StatusStopped},
		From: jobs.StatusExecuting,
	}, at)
	if stopped.Type != "job.stopped" || stopped.From != "executing" {
		t.Fatalf("unexpected stopped message: %+v", stopped)
	}
}

func TestMessageJSONCarriesJobRecord(t *testing.T) {
	out := "hi"
	msg := NewMessage(jobs.Event{
		Job:  jobs.Job{ID: "a", Code: "echo hi", Status: jobs.StatusCompleted, Output: &out},
		From: jobs.StatusExecuting,
	}, time.Now().UTC())

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Type string         `json:"type"`
		Job  map[string]any `json:"job"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "job.completed" || decoded.Job["output"] != "hi" || decoded.Job["id"] != "a" {
		t.Fatalf("unexpected payload: %s", data)
	}
}

func TestConnectRejectsInvalidURL(t *testing.T) {
	if _, err := Connect("not a url"); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

func TestNotifyUnreachableRedisIsBestEffort(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer rdb.Close()

	p := NewPublisher(rdb, "scriptd:test", nil)
	p.timeout = 200 * time.Millisecond

	// Must return without panicking even though publishing fails.
	p.Notify(context.Background(), jobs.Event{Job: jobs.Job{ID: "a", Status: jobs.StatusQueued}})
}
