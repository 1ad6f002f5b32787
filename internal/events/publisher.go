package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"scriptd/internal/jobs"
)

// Message is the JSON payload published for every job transition.
type Message struct {
	Type string    `json:"type"`
	From string    `json:"from,omitempty"`
	Job  jobs.Job  `json:"job"`
	At   time.Time `json:"at"`
}

// Publisher publishes job transitions on a Redis pub/sub channel.
// Publishing is best-effort: failures are logged and never affect the job.
type Publisher struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
	timeout time.Duration
}

// Connect builds a Redis client from a redis:// URL.
func Connect(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

func NewPublisher(rdb *redis.Client, channel string, logger *slog.Logger) *Publisher {
	return &Publisher{
		rdb:     rdb,
		channel: channel,
		logger:  logger,
		timeout: 2 * time.Second,
	}
}

// NewMessage builds the payload for ev.
func NewMessage(ev jobs.Event, at time.Time) Message {
	typ := "job." + string(ev.Job.Status)
	if ev.From == "" {
		typ = "job.submitted"
	}
	return Message{
		Type: typ,
		From: string(ev.From),
		Job:  ev.Job,
		At:   at,
	}
}

func (p *Publisher) Notify(ctx context.Context, ev jobs.Event) {
	payload, err := json.Marshal(NewMessage(ev, time.Now().UTC()))
	if err != nil {
		p.warn("event_encode_failed", ev, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.warn("event_publish_failed", ev, err)
	}
}

func (p *Publisher) warn(msg string, ev jobs.Event, err error) {
	if p.logger != nil {
		p.logger.Warn(msg,
			"script_id", ev.Job.ID,
			"status", string(ev.Job.Status),
			"channel", p.channel,
			"error", err.Error(),
		)
	}
}
