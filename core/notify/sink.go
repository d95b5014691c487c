package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"complaintdesk/core/utils"

	"github.com/redis/go-redis/v9"
)

// Record is an outbox row: an intent plus its delivery bookkeeping.
type Record struct {
	Intent
	Attempts    int        `json:"attempts"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Sink delivers one message to one recipient.
type Sink interface {
	Notify(ctx context.Context, rec Record) error
}

type LogSink struct {
	logger *utils.Logger
}

func NewLogSink(logger *utils.Logger) *LogSink { return &LogSink{logger: logger} }

func (s *LogSink) Notify(_ context.Context, rec Record) error {
	s.logger.Info("notification", "recipient", rec.Recipient, "address", rec.Address, "complaint", rec.ComplaintID, "kind", rec.Kind, "body", rec.Body)
	return nil
}

// DiscardSink drops everything; used when notifications.sink is "none".
type DiscardSink struct{}

func (DiscardSink) Notify(context.Context, Record) error { return nil }

// Publisher is the part of *redis.Client the redis sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisSink struct {
	client  Publisher
	channel string
}

func NewRedisSink(client Publisher, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

type envelope struct {
	ID          string    `json:"id"`
	ComplaintID string    `json:"complaint_id"`
	Kind        Kind      `json:"kind"`
	Recipient   string    `json:"recipient"`
	Address     string    `json:"address"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
	Attempt     int       `json:"attempt"`
}

var ErrNoSubscribers = errors.New("notify: no subscribers on channel")

func (s *RedisSink) Notify(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(envelope{
		ID:          rec.ID,
		ComplaintID: rec.ComplaintID,
		Kind:        rec.Kind,
		Recipient:   rec.Recipient,
		Address:     rec.Address,
		Subject:     rec.Subject,
		Body:        rec.Body,
		CreatedAt:   rec.CreatedAt,
		Attempt:     rec.Attempts + 1,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	receivers, err := s.client.Publish(ctx, s.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	if receivers == 0 {
		return ErrNoSubscribers
	}
	return nil
}
