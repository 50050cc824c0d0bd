// Package mq forwards reservation lifecycle events to a RabbitMQ topic
// exchange so external consumers (notification workers, reporting jobs) can
// react to committed bookings without polling the API.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/resource-booking/internal/application"
)

// publishChannel is the slice of *amqp.Channel the publisher needs. Tests
// substitute a recording implementation.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher emits reservation events as JSON messages on a durable topic
// exchange. The routing key is the event type, e.g. "reservation.created",
// so consumers can bind with patterns like "reservation.*".
type Publisher struct {
	conn     *amqp.Connection
	channel  publishChannel
	exchange string
	logger   *slog.Logger
}

// NewPublisher dials the broker, opens a channel, and declares the exchange.
func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return newPublisher(conn, channel, exchange, logger), nil
}

func newPublisher(conn *amqp.Connection, channel publishChannel, exchange string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, channel: channel, exchange: exchange, logger: logger}
}

// PublishReservationEvent implements application.EventPublisher.
func (p *Publisher) PublishReservationEvent(ctx context.Context, event application.ReservationEvent) error {
	if p == nil || p.channel == nil {
		return fmt.Errorf("mq publisher not configured")
	}

	body, err := json.Marshal(toEventMessage(event))
	if err != nil {
		return fmt.Errorf("encode reservation event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.At,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish reservation event: %w", err)
	}

	p.logger.DebugContext(ctx, "reservation event published",
		"exchange", p.exchange,
		"routing_key", string(event.Type),
		"reservation_id", event.Reservation.ID,
	)
	return nil
}

// Close releases the channel and connection. Safe on a nil receiver.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// eventMessage is the wire form of a reservation event.
type eventMessage struct {
	Type        string             `json:"type"`
	ActorID     string             `json:"actor_id"`
	At          string             `json:"at"`
	Reservation reservationMessage `json:"reservation"`
}

type reservationMessage struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	BookedBy       string   `json:"booked_by"`
	ResourceID     string   `json:"resource_id"`
	ResourceType   string   `json:"resource_type"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Status         string   `json:"status"`
	Quantity       int      `json:"quantity"`
	Purpose        string   `json:"purpose,omitempty"`
	DevicePurposes []string `json:"device_purposes,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

func toEventMessage(event application.ReservationEvent) eventMessage {
	return eventMessage{
		Type:    string(event.Type),
		ActorID: event.ActorID,
		At:      event.At.UTC().Format(time.RFC3339Nano),
		Reservation: reservationMessage{
			ID:             event.Reservation.ID,
			UserID:         event.Reservation.UserID,
			BookedBy:       event.Reservation.BookedBy,
			ResourceID:     event.Reservation.ResourceID,
			ResourceType:   string(event.Reservation.ResourceType),
			Start:          event.Reservation.Start.UTC().Format(time.RFC3339Nano),
			End:            event.Reservation.End.UTC().Format(time.RFC3339Nano),
			Status:         string(event.Reservation.Status),
			Quantity:       event.Reservation.Quantity,
			Purpose:        event.Reservation.Purpose,
			DevicePurposes: event.Reservation.DevicePurposes,
			Notes:          event.Reservation.Notes,
		},
	}
}
