package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher enqueues work and returns the message id.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

type Config struct {
	Workers     int
	RetryLimit  int
	RetryDelay  time.Duration
	PollTimeout time.Duration
	StatusTTL   time.Duration
}

type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateRetry   State = "retrying"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status is the last known state of a message, kept for StatusTTL.
type Status struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	State     State     `json:"state"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newMessage(msgType string, payload interface{}, now time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: now,
	}, nil
}

// shouldRetry reports whether a message that just failed its attempt-th try gets another.
func shouldRetry(attempts, limit int) bool {
	return attempts <= limit
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &out, nil
}
