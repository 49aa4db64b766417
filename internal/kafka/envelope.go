package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/service"
)

// EventType names the payload carried by an Envelope.
type EventType string

const (
	TypeProfile       EventType = "profile"
	TypeParticipation EventType = "participation"
	TypeEvent         EventType = "event"
	TypeReview        EventType = "review"
)

// Envelope is the wire format of the domain event topic.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EventHandler ingests decoded domain events.
type EventHandler interface {
	IngestProfile(ctx context.Context, ev domain.ProfileEvent) (*service.IngestResult, error)
	IngestParticipation(ctx context.Context, ev domain.ParticipationEvent) (*service.IngestResult, error)
	IngestEvent(ctx context.Context, ev domain.EventLifecycleEvent) (*service.IngestResult, error)
	IngestReview(ctx context.Context, ev domain.ReviewEvent) (*service.IngestResult, error)
}

// Encode wraps payload in an envelope of the given type.
func Encode(t EventType, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Decode parses a message value into an envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	switch env.Type {
	case TypeProfile, TypeParticipation, TypeEvent, TypeReview:
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidRequest, env.Type)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidRequest)
	}
	return &env, nil
}

// Dispatch routes env to the matching ingestion method.
func Dispatch(ctx context.Context, h EventHandler, env *Envelope) (*service.IngestResult, error) {
	switch env.Type {
	case TypeProfile:
		return dispatch(ctx, env.Payload, h.IngestProfile)
	case TypeParticipation:
		return dispatch(ctx, env.Payload, h.IngestParticipation)
	case TypeEvent:
		return dispatch(ctx, env.Payload, h.IngestEvent)
	case TypeReview:
		return dispatch(ctx, env.Payload, h.IngestReview)
	}
	return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidRequest, env.Type)
}

func dispatch[T any](ctx context.Context, payload json.RawMessage, fn func(context.Context, T) (*service.IngestResult, error)) (*service.IngestResult, error) {
	var ev T
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return fn(ctx, ev)
}
