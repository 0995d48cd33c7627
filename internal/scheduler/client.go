// Package scheduler provides the asynq client and worker for background
// tasks: session reminders and periodic payment reconciliation.
package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"tutorcoach_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues background tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient creates an asynq client from the redis URL in config.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleReminder enqueues the per-session nudge at its fire time.
// Implements the orchestrator's ReminderScheduler.
func (c *Client) ScheduleReminder(ctx context.Context, sessionID uuid.UUID, remindAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSessionNudgeTask(SessionNudgePayload{SessionID: sessionID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(remindAt), asynq.Queue(c.queue))
	return err
}

// EnqueueReconciliationRun enqueues one reconciliation pass.
func (c *Client) EnqueueReconciliationRun(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("scheduler client not configured")
	}
	_, err := c.client.EnqueueContext(ctx, NewReconciliationRunTask(), asynq.Queue(c.queue))
	return err
}

// EnqueueNudgeSweep enqueues one reminder sweep.
func (c *Client) EnqueueNudgeSweep(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("scheduler client not configured")
	}
	_, err := c.client.EnqueueContext(ctx, NewNudgeSweepTask(), asynq.Queue(c.queue))
	return err
}

// redisClientOpt parses a redis URL (redis:// or rediss://) into asynq's
// connection options, optionally relaxing TLS verification for managed
// instances with self-signed chains.
func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
