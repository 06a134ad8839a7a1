package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const inboundStream = "MARKET_EVENTS"

// RawEvent is the parsed-but-untyped event from NATS, ready for the shell
// to validate and convert into a typed event.Event before handing it to
// the engine. DeliveryID correlates log lines for one delivery attempt.
type RawEvent struct {
	Subject    string
	Data       []byte
	DeliveryID uuid.UUID
	Timestamp  time.Time
	AckFunc    func() // ACK after the engine accepted (or deliberately ignored) the event
	NakFunc    func() // NAK on transient failure; JetStream redelivers
}

// SubjectConfig binds one inbound subject to a durable consumer.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration. All three
// subjects live on one stream so the source maintains a single total
// order across bets, resolutions, and redemptions.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "markets.bets.>", EventType: "BetPlaced", ConsumerName: "ledger-bets", StreamName: inboundStream},
		{Subject: "markets.resolutions.>", EventType: "MarketResolved", ConsumerName: "ledger-resolutions", StreamName: inboundStream},
		{Subject: "markets.redemptions.>", EventType: "PayoutRedeemed", ConsumerName: "ledger-redemptions", StreamName: inboundStream},
	}
}

// NATSSubscriber feeds inbound JetStream messages into the engine through
// eventChan. NATS is the only write surface; every ledger mutation
// arrives as a message on one of the market subjects.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent) *NATSSubscriber {
	return &NATSSubscriber{js: js, eventChan: eventChan}
}

// Subscribe creates a durable explicit-ACK consumer per subject and
// starts consuming.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		if err := ns.subscribeOne(ctx, cfg); err != nil {
			return err
		}
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}
	return nil
}

func (ns *NATSSubscriber) subscribeOne(ctx context.Context, cfg SubjectConfig) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       cfg.ConsumerName,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawEvent{
			Subject:    msg.Subject(),
			Data:       msg.Data(),
			DeliveryID: uuid.New(),
			Timestamp:  time.Now(),
			AckFunc:    func() { msg.Ack() },
			NakFunc:    func() { msg.Nak() },
		}
		select {
		case ns.eventChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
	}

	ns.consumers = append(ns.consumers, cc)
	return nil
}

// Stop halts all consumers; in-flight unacked messages get redelivered.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// EnsureStreams creates the inbound stream if it does not exist.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      inboundStream,
		Subjects:  []string{"markets.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", inboundStream, err)
	}
	log.Printf("INFO: inbound stream %s ready", inboundStream)
	return nil
}

// ConnectNATS dials NATS with unbounded reconnects and returns the
// connection plus a JetStream handle.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
