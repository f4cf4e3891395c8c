package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quickdraw/go/internal/duel"
)

// Event payload types shared between the publisher and gateway packages

// EventType names a duel event on the wire
type EventType string

const (
	EventTypeRoundStarted       EventType = "RoundStarted"
	EventTypeDrawSignaled       EventType = "DrawSignaled"
	EventTypeRoundResolved      EventType = "RoundResolved"
	EventTypeOpponentVisibility EventType = "OpponentVisibility"
)

// RoundStartedPayload is the payload for a RoundStarted event
type RoundStartedPayload struct {
	RoundID   int64     `json:"round_id"`
	StartedAt time.Time `json:"started_at"`
	WaitMs    int64     `json:"wait_ms"`
}

// DrawSignaledPayload is the payload for a DrawSignaled event
type DrawSignaledPayload struct {
	RoundID int64     `json:"round_id"`
	DrawAt  time.Time `json:"draw_at"`
}

// RoundResolvedPayload is the payload for a RoundResolved event
type RoundResolvedPayload struct {
	RoundID    int64     `json:"round_id"`
	Outcome    string    `json:"outcome"`
	ResolvedAt time.Time `json:"resolved_at"`
	ReactionMs int64     `json:"reaction_ms"`
}

// OpponentVisibilityPayload is the payload for an OpponentVisibility event
type OpponentVisibilityPayload struct {
	RoundID int64 `json:"round_id"`
	Visible bool  `json:"visible"`
}

// Envelope wraps an event payload for transport
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType EventType       `json:"event_type"`
	RoundID   int64           `json:"round_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope
func NewEnvelope(eventType EventType, roundID int64, at time.Time, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		RoundID:   roundID,
		Timestamp: at.UTC(),
		Payload:   data,
	}, nil
}

// RoundStarted builds the envelope announcing a new round
func RoundStarted(r duel.Round) (Envelope, error) {
	return NewEnvelope(EventTypeRoundStarted, r.ID, r.StartedAt, RoundStartedPayload{
		RoundID:   r.ID,
		StartedAt: r.StartedAt,
		WaitMs:    r.WaitTime.Milliseconds(),
	})
}

// DrawSignaled builds the envelope for the go signal
func DrawSignaled(r duel.Round) (Envelope, error) {
	return NewEnvelope(EventTypeDrawSignaled, r.ID, r.DrawAt, DrawSignaledPayload{
		RoundID: r.ID,
		DrawAt:  r.DrawAt,
	})
}

// RoundResolved builds the envelope for a round's outcome
func RoundResolved(r duel.Round) (Envelope, error) {
	return NewEnvelope(EventTypeRoundResolved, r.ID, r.ResolvedAt, RoundResolvedPayload{
		RoundID:    r.ID,
		Outcome:    string(r.Outcome),
		ResolvedAt: r.ResolvedAt,
		ReactionMs: r.ReactionTime.Milliseconds(),
	})
}

// OpponentVisibility builds the envelope for the opponent appearing at round
// start or dropping when shot
func OpponentVisibility(r duel.Round, visible bool) (Envelope, error) {
	at := r.StartedAt
	if !visible && !r.ResolvedAt.IsZero() {
		at = r.ResolvedAt
	}
	return NewEnvelope(EventTypeOpponentVisibility, r.ID, at, OpponentVisibilityPayload{
		RoundID: r.ID,
		Visible: visible,
	})
}

// ParsePayload decodes an envelope's payload into its typed struct
func ParsePayload(env Envelope) (interface{}, error) {
	switch env.EventType {
	case EventTypeRoundStarted:
		var payload RoundStartedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeDrawSignaled:
		var payload DrawSignaledPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoundResolved:
		var payload RoundResolvedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeOpponentVisibility:
		var payload OpponentVisibilityPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
}
