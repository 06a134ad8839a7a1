package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Outbound subjects, one family per event kind so downstream consumers
// (payout service, analytics) can subscribe to just what they need.
const (
	subjectBets        = "ledger.bets"
	subjectSettlements = "ledger.settlements"
	subjectRedemptions = "ledger.redemptions"
)

// PublishableEvent is a committed event ready for outbound publishing.
type PublishableEvent struct {
	Sequence       int64       `json:"sequence"`
	EventType      string      `json:"event_type"`
	IdempotencyKey string      `json:"idempotency_key"`
	MarketID       *string     `json:"market_id,omitempty"`
	Payload        interface{} `json:"payload"`
	StateHash      []byte      `json:"state_hash"`
	Timestamp      time.Time   `json:"timestamp"`
}

// OutboundPublisher drains the notify channel onto NATS. A failed or
// dropped publish is never fatal; the event log in Postgres remains the
// source of truth and consumers can catch up from it.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableEvent
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableEvent) *OutboundPublisher {
	return &OutboundPublisher{js: js, inputChan: inputChan}
}

// Run drains the input channel until it closes or ctx is canceled.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if err := op.publish(ctx, evt); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d type=%s: %v",
					evt.Sequence, evt.EventType, err)
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt PublishableEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal outbound event: %w", err)
	}
	_, err = op.js.Publish(ctx, outboundSubject(evt), data)
	return err
}

func outboundSubject(evt PublishableEvent) string {
	var root string
	switch evt.EventType {
	case "MarketResolved":
		root = subjectSettlements
	case "PayoutRedeemed":
		root = subjectRedemptions
	default:
		root = subjectBets
	}
	if evt.MarketID != nil {
		return root + "." + *evt.MarketID
	}
	return root
}

// EnsureOutboundStream creates or updates the stream the publisher
// writes into.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "LEDGER_EVENTS",
		Subjects:  []string{"ledger.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("ensure outbound stream: %w", err)
	}
	log.Println("INFO: outbound stream LEDGER_EVENTS ready")
	return nil
}
