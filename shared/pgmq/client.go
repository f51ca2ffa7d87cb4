package pgmq

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Message is one delivery of a queued job. MsgID is unique per delivery,
// ReadCount is the number of times the logical message has been dequeued
// across redeliveries.
type Message struct {
	MsgID      int64           `db:"msg_id"`
	ReadCount  int             `db:"read_ct"`
	EnqueuedAt time.Time       `db:"enqueued_at"`
	VT         time.Time       `db:"vt"`
	Payload    json.RawMessage `db:"message"`
}

// Config holds queue configuration
type Config struct {
	QueueName string
}

// Client wraps the PGMQ SQL functions for a single queue. Messages read
// through it are leased for the caller-supplied visibility timeout and
// reappear automatically if neither Delete nor Archive is called in time.
type Client struct {
	db     *sqlx.DB
	config *Config
	logger *slog.Logger
}

// NewClient creates a new PGMQ client bound to one queue
func NewClient(db *sqlx.DB, config *Config, logger *slog.Logger) (*Client, error) {
	if config.QueueName == "" {
		return nil, fmt.Errorf("pgmq queue name is required")
	}

	return &Client{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// QueueName returns the queue this client operates on
func (c *Client) QueueName() string {
	return c.config.QueueName
}

// EnsureQueue creates the queue if it does not exist yet. Safe to call on
// every startup.
func (c *Client) EnsureQueue(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `SELECT pgmq.create($1)`, c.config.QueueName); err != nil {
		return fmt.Errorf("failed to create queue %s: %w", c.config.QueueName, err)
	}

	c.logger.Info("Queue ready",
		slog.String("queue", c.config.QueueName),
	)

	return nil
}

// Read dequeues up to qty messages, each leased for vt. An empty result is
// a normal outcome, not an error.
func (c *Client) Read(ctx context.Context, vt time.Duration, qty int) ([]Message, error) {
	var messages []Message

	err := c.db.SelectContext(ctx, &messages,
		`SELECT msg_id, read_ct, enqueued_at, vt, message
		 FROM pgmq.read($1, $2, $3)`,
		c.config.QueueName, int(vt.Seconds()), qty,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read from queue %s: %w", c.config.QueueName, err)
	}

	return messages, nil
}

// Delete permanently removes a message (acknowledge). Returns false when the
// message is already gone, which is not an error.
func (c *Client) Delete(ctx context.Context, msgID int64) (bool, error) {
	var deleted bool

	err := c.db.GetContext(ctx, &deleted,
		`SELECT pgmq.delete($1, $2::bigint)`,
		c.config.QueueName, msgID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete message %d: %w", msgID, err)
	}

	c.logger.Debug("Message deleted",
		slog.String("queue", c.config.QueueName),
		slog.Int64("msg_id", msgID),
		slog.Bool("deleted", deleted),
	)

	return deleted, nil
}

// Archive moves a message to the queue's archive table for manual
// inspection, removing it from the active queue.
func (c *Client) Archive(ctx context.Context, msgID int64) (bool, error) {
	var archived bool

	err := c.db.GetContext(ctx, &archived,
		`SELECT pgmq.archive($1, $2::bigint)`,
		c.config.QueueName, msgID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to archive message %d: %w", msgID, err)
	}

	c.logger.Debug("Message archived",
		slog.String("queue", c.config.QueueName),
		slog.Int64("msg_id", msgID),
		slog.Bool("archived", archived),
	)

	return archived, nil
}

// Send enqueues a payload and returns the new message ID. The worker never
// calls this; it exists for operational tooling and backfills.
func (c *Client) Send(ctx context.Context, payload any) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var msgID int64
	err = c.db.GetContext(ctx, &msgID,
		`SELECT pgmq.send($1, $2::jsonb)`,
		c.config.QueueName, string(body),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to send to queue %s: %w", c.config.QueueName, err)
	}

	return msgID, nil
}
