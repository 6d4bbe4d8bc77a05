// Package queue is a Postgres-backed work queue. Claims use
// FOR UPDATE SKIP LOCKED so concurrent workers never double-claim, and a
// claim lease lets messages from crashed workers be redelivered.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TopicJobs carries job ids awaiting pipeline execution.
const TopicJobs = "jobs"

// DefaultClaimTTL is how long a claim is honored before the message becomes
// eligible for redelivery. Transcription of long audio is slow, so the lease
// is generous.
const DefaultClaimTTL = 45 * time.Minute

type Message struct {
	ID        int64
	Topic     string
	Payload   []byte
	CreatedAt time.Time
}

// JobPayload is the message body on TopicJobs.
type JobPayload struct {
	JobID string `json:"job_id"`
}

type Queue struct {
	pool     *pgxpool.Pool
	claimTTL time.Duration
}

func New(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool, claimTTL: DefaultClaimTTL}
}

func (q *Queue) Enqueue(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = q.pool.Exec(ctx,
		`INSERT INTO queue_messages (topic, payload) VALUES ($1, $2)`, topic, body)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Claim takes the oldest available message on a topic, or nil when the queue
// is empty. Messages whose claim lease has expired are claimed again.
func (q *Queue) Claim(ctx context.Context, topic, consumer string) (*Message, error) {
	staleBefore := time.Now().Add(-q.claimTTL)
	row := q.pool.QueryRow(ctx, `
		UPDATE queue_messages SET claimed_by = $2, claimed_at = NOW()
		WHERE id = (
			SELECT id FROM queue_messages
			WHERE topic = $1 AND (claimed_at IS NULL OR claimed_at < $3)
			ORDER BY id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, topic, payload, created_at`,
		topic, consumer, staleBefore)

	var msg Message
	err := row.Scan(&msg.ID, &msg.Topic, &msg.Payload, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim message: %w", err)
	}
	return &msg, nil
}

// Ack deletes a handled message. Deleting an already-deleted message is not
// an error.
func (q *Queue) Ack(ctx context.Context, id int64) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM queue_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ack message: %w", err)
	}
	return nil
}

// Depth reports the number of unclaimed messages on a topic.
func (q *Queue) Depth(ctx context.Context, topic string) (int, error) {
	var n int
	err := q.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_messages
		WHERE topic = $1 AND claimed_at IS NULL`, topic).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}
