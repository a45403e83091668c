// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package broker wraps a Watermill NATS JetStream publisher/subscriber pair
// for the sync-engine and search event topics: "user.<id>.sync",
// "user.<id>.devices", "content.*", and "search.query".
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/streamforge/discovery/internal/config"
	"github.com/streamforge/discovery/internal/metrics"
)

// Topic names this service publishes and subscribes to.
const (
	TopicUserSyncFmt     = "user.%s.sync"
	TopicUserDevicesFmt  = "user.%s.devices"
	TopicContentWild     = "content.*"
	TopicContentExpiring = "content.expiring"
	TopicSearchQuery     = "search.query"
)

// UserSyncTopic returns the per-user sync-event topic.
func UserSyncTopic(userID string) string { return fmt.Sprintf(TopicUserSyncFmt, userID) }

// UserDevicesTopic returns the per-user device-presence topic.
func UserDevicesTopic(userID string) string { return fmt.Sprintf(TopicUserDevicesFmt, userID) }

// Publisher wraps a Watermill NATS JetStream publisher with circuit-breaker
// protection and message-id-based deduplication.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher creates a resilient JetStream publisher.
func NewPublisher(cfg config.BrokerConfig) (*Publisher, error) {
	logger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnect),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("broker disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("broker reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create broker publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "broker-publish",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerRequest(name, to.String())
		},
	})

	return &Publisher{publisher: pub, breaker: breaker}, nil
}

// Publish sends a message to topic, stamping a NATS dedup header from the
// message UUID when the caller hasn't already set one.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("broker publisher is closed")
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})

	if err == nil {
		metrics.BrokerMessagesPublished.WithLabelValues(topic).Inc()
		metrics.RecordCircuitBreakerRequest("broker-publish", "success")
	} else {
		metrics.RecordCircuitBreakerRequest("broker-publish", "failure")
	}
	return err
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// Subscriber wraps a durable JetStream subscriber for a single topic.
type Subscriber struct {
	subscriber message.Subscriber
}

// SubscriberOptions configures consumer durability and redelivery behavior.
type SubscriberOptions struct {
	QueueGroup       string
	DurableName      string
	MaxDeliver       int
	MaxAckPending    int
	AckWaitTimeout   time.Duration
	SubscribersCount int
}

// DefaultSubscriberOptions returns sane defaults for a single-instance consumer.
func DefaultSubscriberOptions(durableName string) SubscriberOptions {
	return SubscriberOptions{
		QueueGroup:       durableName,
		DurableName:      durableName,
		MaxDeliver:       5,
		MaxAckPending:    256,
		AckWaitTimeout:   30 * time.Second,
		SubscribersCount: 1,
	}
}

// NewSubscriber creates a durable JetStream subscriber bound to a topic.
func NewSubscriber(cfg config.BrokerConfig, opts SubscriberOptions) (*Subscriber, error) {
	logger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnect),
		natsgo.ReconnectWait(2 * time.Second),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(opts.MaxDeliver),
		natsgo.MaxAckPending(opts.MaxAckPending),
		natsgo.AckWait(opts.AckWaitTimeout),
		natsgo.DeliverNew(),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: opts.QueueGroup,
		SubscribersCount: opts.SubscribersCount,
		AckWaitTimeout:   opts.AckWaitTimeout,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    true,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    opts.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create broker subscriber: %w", err)
	}
	return &Subscriber{subscriber: sub}, nil
}

// Subscribe starts consuming topic and records per-message processing
// duration and consumed-message counters as messages are delivered.
func (s *Subscriber) Subscribe(ctx context.Context, topic string, handle func(context.Context, *message.Message) error) error {
	messages, err := s.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			start := time.Now()
			if err := handle(ctx, msg); err != nil {
				msg.Nack()
			} else {
				msg.Ack()
			}
			metrics.BrokerMessagesConsumed.WithLabelValues(topic).Inc()
			metrics.BrokerProcessingDuration.Observe(time.Since(start).Seconds())
		}
	}()
	return nil
}

// Close gracefully shuts down the subscriber.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
