// Package events publishes committed appointment transitions to NATS
// JetStream for downstream consumers (calendar sync, audit).
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"lexcal-scheduler/internal/model"
)

const (
	streamName    = "LEXCAL_EVENTS"
	subjectPrefix = "lexcal.event.appointment."
)

type Type string

const (
	TypeCreated   Type = "created"
	TypeRequested Type = "requested"
	TypeConfirmed Type = "confirmed"
	TypeRejected  Type = "rejected"
	TypeCancelled Type = "cancelled"
	TypeUpdated   Type = "updated"
	TypeDeleted   Type = "deleted"
)

// Event carries ids and timing only; free-text fields stay in the store.
type Event struct {
	EventID         string       `json:"event_id"`
	Type            Type         `json:"type"`
	AppointmentID   string       `json:"appointment_id"`
	LawyerID        string       `json:"lawyer_id"`
	ClientID        string       `json:"client_id"`
	ActorID         string       `json:"actor_id"`
	Status          model.Status `json:"status"`
	Start           time.Time    `json:"start"`
	DurationMinutes int          `json:"duration_minutes"`
	OccurredAt      time.Time    `json:"occurred_at"`
}

func NewEvent(t Type, a *model.Appointment, actorID string, at time.Time) Event {
	return Event{
		EventID:         uuid.New().String(),
		Type:            t,
		AppointmentID:   a.ID,
		LawyerID:        a.LawyerID,
		ClientID:        a.ClientID,
		ActorID:         actorID,
		Status:          a.Status,
		Start:           a.Start,
		DurationMinutes: a.DurationMinutes,
		OccurredAt:      at,
	}
}

func (e Event) Subject() string {
	return subjectPrefix + string(e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type JetStreamPublisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

func Connect(url string) (*JetStreamPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("lexcal-scheduler"))
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	if err := ensureStream(js); err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	return &JetStreamPublisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(streamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		Replicas:  1,
	})
	return err
}

func (p *JetStreamPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	// MsgId lets JetStream drop duplicates if a caller retries.
	_, err = p.js.Publish(e.Subject(), payload, nats.Context(ctx), nats.MsgId(e.EventID))
	return err
}

func (p *JetStreamPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
	p.conn.Close()
}
