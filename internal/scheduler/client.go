package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"portal_analysis_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const defaultPollUniqueFor = 30 * time.Second

// Client enqueues analysis status polls.
type Client struct {
	client    *asynq.Client
	queue     string
	uniqueFor time.Duration
}

// PollEnqueuer schedules a status poll for one job.
type PollEnqueuer interface {
	EnqueueStatusPoll(ctx context.Context, payload StatusPollPayload) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return NewClientWithOpt(opt, cfg.GetAsynqQueueName(), cfg.GetPollInterval()), nil
}

// NewClientWithOpt builds a client for an explicit redis connection.
func NewClientWithOpt(opt asynq.RedisConnOpt, queue string, uniqueFor time.Duration) *Client {
	if queue == "" {
		queue = "default"
	}
	if uniqueFor <= 0 {
		uniqueFor = defaultPollUniqueFor
	}
	return &Client{
		client:    asynq.NewClient(opt),
		queue:     queue,
		uniqueFor: uniqueFor,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueStatusPoll schedules a poll unless one for the same job is already
// pending within the uniqueness window.
func (c *Client) EnqueueStatusPoll(ctx context.Context, payload StatusPollPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewStatusPollTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.Unique(c.uniqueFor),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

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

var _ PollEnqueuer = (*Client)(nil)
