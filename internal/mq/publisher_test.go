package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/resource-booking/internal/application"
	"github.com/example/resource-booking/internal/availability"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *recordingChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.exchange = exchange
	c.key = key
	c.msg = msg
	return nil
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublisher_PublishReservationEvent(t *testing.T) {
	t.Parallel()

	t.Run("routes by event type and encodes the reservation", func(t *testing.T) {
		t.Parallel()

		channel := &recordingChannel{}
		publisher := newPublisher(nil, channel, "booking.events", nil)

		start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
		event := application.ReservationEvent{
			Type:    application.EventReservationCreated,
			ActorID: "user-1",
			At:      start,
			Reservation: application.Reservation{
				ID:           "resv-1",
				UserID:       "user-1",
				ResourceID:   "device-1",
				ResourceType: availability.ResourceDevice,
				Start:        start,
				End:          start.Add(45 * time.Minute),
				Status:       availability.StatusApproved,
				Quantity:     2,
			},
		}

		if err := publisher.PublishReservationEvent(context.Background(), event); err != nil {
			t.Fatalf("PublishReservationEvent failed: %v", err)
		}

		if channel.exchange != "booking.events" {
			t.Fatalf("expected booking.events exchange, got %q", channel.exchange)
		}
		if channel.key != "reservation.created" {
			t.Fatalf("expected routing key reservation.created, got %q", channel.key)
		}

		var msg eventMessage
		if err := json.Unmarshal(channel.msg.Body, &msg); err != nil {
			t.Fatalf("failed to decode published body: %v", err)
		}
		if msg.Reservation.ID != "resv-1" || msg.Reservation.Quantity != 2 {
			t.Fatalf("unexpected reservation payload: %+v", msg.Reservation)
		}
		if msg.Reservation.Start != "2024-06-10T09:00:00Z" {
			t.Fatalf("unexpected start encoding: %q", msg.Reservation.Start)
		}
	})

	t.Run("surfaces broker failures", func(t *testing.T) {
		t.Parallel()

		channel := &recordingChannel{err: errors.New("channel closed")}
		publisher := newPublisher(nil, channel, "booking.events", nil)

		err := publisher.PublishReservationEvent(context.Background(), application.ReservationEvent{Type: application.EventReservationDeleted})
		if err == nil {
			t.Fatal("expected publish error")
		}
	})

	t.Run("nil publisher reports misconfiguration", func(t *testing.T) {
		t.Parallel()

		var publisher *Publisher
		if err := publisher.PublishReservationEvent(context.Background(), application.ReservationEvent{}); err == nil {
			t.Fatal("expected error from nil publisher")
		}
	})
}

func TestPublisher_Close(t *testing.T) {
	t.Parallel()

	channel := &recordingChannel{}
	publisher := newPublisher(nil, channel, "booking.events", nil)
	if err := publisher.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !channel.closed {
		t.Fatal("expected channel to be closed")
	}
}
