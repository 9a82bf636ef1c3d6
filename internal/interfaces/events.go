package interfaces

import (
	"context"
	"time"
)

// EventType identifies a category of internal event
type EventType string

const (
	EventJobCreated       EventType = "job_created"
	EventJobClaimed       EventType = "job_claimed"
	EventJobCompleted     EventType = "job_completed"
	EventJobFailed        EventType = "job_failed"
	EventJobRequeued      EventType = "job_requeued"
	EventSessionVerified  EventType = "session_verified"
	EventSessionLost      EventType = "session_lost"
	EventChallengeSolved  EventType = "challenge_solved"
	EventChallengeFailed  EventType = "challenge_failed"
)

// Event is a single published occurrence
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventHandler processes a published event
type EventHandler func(ctx context.Context, event Event) error

// EventService is an in-process pub/sub bus used to decouple the job runner
// from observers (websocket stream, logging).
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
}
