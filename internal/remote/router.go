// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/streamforge/discovery/internal/broker"
	"github.com/streamforge/discovery/internal/metrics"
	"github.com/streamforge/discovery/internal/store"
)

// DeviceLookup is the subset of internal/store the router needs to
// validate a command's source and target devices.
type DeviceLookup interface {
	GetDevice(ctx context.Context, userID, deviceID string) (*store.Device, error)
}

var _ DeviceLookup = (*store.Store)(nil)

// Publisher is the subset of internal/broker the router publishes
// commands and acks through.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

var _ Publisher = (*broker.Publisher)(nil)

// Subscriber is the subset of internal/broker a device subscribes
// against to receive commands targeting it and acks of commands it
// issued.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handle func(context.Context, *message.Message) error) error
}

var _ Subscriber = (*broker.Subscriber)(nil)

const (
	publishBackoffBase = 100 * time.Millisecond
	publishMaxAttempts = 3
)

// pendingAck tracks one issued command awaiting acknowledgment.
type pendingAck struct {
	command  Command
	issuedAt time.Time
}

// Router issues typed remote commands to a user's devices over the
// "user.<id>.devices" NATS topic, validates them before publish per
// spec.md §4.G, and sweeps pending acks older than AckMaxAge.
type Router struct {
	devices    DeviceLookup
	pub        Publisher
	sub        Subscriber
	defaultTTL time.Duration
	ackSweep   time.Duration
	ackMaxAge  time.Duration

	mu      sync.Mutex
	pending map[string]pendingAck
}

// New builds a Router for one connected device session.
func New(devices DeviceLookup, pub Publisher, sub Subscriber, defaultTTL, ackSweep, ackMaxAge time.Duration) *Router {
	return &Router{
		devices:    devices,
		pub:        pub,
		sub:        sub,
		defaultTTL: defaultTTL,
		ackSweep:   ackSweep,
		ackMaxAge:  ackMaxAge,
		pending:    make(map[string]pendingAck),
	}
}

// Dispatch validates and publishes one command, per spec.md §4.G's
// validation-then-delivery sequence. The returned error, when non-nil,
// is always a *Error carrying a FailureReason.
func (r *Router) Dispatch(ctx context.Context, cmd Command) error {
	now := time.Now()
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = now
	}
	if cmd.TTL == 0 {
		cmd.TTL = r.defaultTTL
	}

	var source *store.Device
	if cmd.SourceDeviceID != "" {
		s, err := r.devices.GetDevice(ctx, cmd.UserID, cmd.SourceDeviceID)
		if err != nil {
			metrics.RemoteCommandsFailed.WithLabelValues(string(FailureInternal)).Inc()
			return fail(FailureInternal, fmt.Errorf("lookup source device: %w", err))
		}
		source = s
	}

	target, err := r.devices.GetDevice(ctx, cmd.UserID, cmd.TargetDeviceID)
	if err != nil {
		metrics.RemoteCommandsFailed.WithLabelValues(string(FailureInternal)).Inc()
		return fail(FailureInternal, fmt.Errorf("lookup target device: %w", err))
	}

	if verr := Validate(cmd, source, target, now); verr != nil {
		metrics.RemoteCommandsFailed.WithLabelValues(string(verr.Reason)).Inc()
		return verr
	}

	env := Envelope{Kind: KindCommand, Command: &cmd}
	if err := publishWithRetry(ctx, r.pub, cmd.UserID, env); err != nil {
		metrics.RemoteCommandsFailed.WithLabelValues(string(FailureInternal)).Inc()
		return fail(FailureInternal, err)
	}

	r.mu.Lock()
	r.pending[cmd.ID] = pendingAck{command: cmd, issuedAt: now}
	r.mu.Unlock()

	metrics.RemoteCommandsIssued.WithLabelValues(string(cmd.Type)).Inc()
	return nil
}

// Ack records acknowledgment of a previously issued command, clearing it
// from the pending set. Acks for unknown or already-swept command ids are
// silently ignored (at-least-once delivery means duplicates are expected).
func (r *Router) Ack(ack Ack) {
	r.mu.Lock()
	pa, ok := r.pending[ack.CommandID]
	if ok {
		delete(r.pending, ack.CommandID)
	}
	r.mu.Unlock()

	if ok {
		metrics.RemoteCommandsAcked.WithLabelValues(string(pa.command.Type)).Inc()
	}
}

// SweepStale removes pending acks older than AckMaxAge and returns the
// swept command ids, in deterministic (sorted) order.
func (r *Router) SweepStale(now time.Time) []string {
	r.mu.Lock()
	var swept []string
	for id, pa := range r.pending {
		if now.Sub(pa.issuedAt) >= r.ackMaxAge {
			swept = append(swept, id)
			metrics.RemoteCommandsExpired.WithLabelValues(string(pa.command.Type)).Inc()
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	sort.Strings(swept)
	return swept
}

// Subscribe attaches to the user's devices topic, dispatching incoming
// commands to handleCommand (typically: apply locally, then Ack) and
// incoming acks to the router's own pending-ack bookkeeping.
func (r *Router) Subscribe(ctx context.Context, userID, deviceID string, handleCommand func(context.Context, Command) error) error {
	topic := broker.UserDevicesTopic(userID)
	return r.sub.Subscribe(ctx, topic, func(ctx context.Context, msg *message.Message) error {
		var env Envelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			return fmt.Errorf("unmarshal command envelope: %w", err)
		}
		switch env.Kind {
		case KindCommand:
			if env.Command == nil || env.Command.TargetDeviceID != deviceID {
				return nil
			}
			return handleCommand(ctx, *env.Command)
		case KindAck:
			if env.Ack != nil {
				r.Ack(*env.Ack)
			}
			return nil
		default:
			return fmt.Errorf("unknown command envelope kind %q", env.Kind)
		}
	})
}

// PublishAck publishes an acknowledgment of a command this device just
// applied.
func (r *Router) PublishAck(ctx context.Context, userID string, ack Ack) error {
	env := Envelope{Kind: KindAck, Ack: &ack}
	return publishWithRetry(ctx, r.pub, userID, env)
}

// Serve runs the pending-ack sweep loop until ctx is cancelled, per
// spec.md §4.G's "pending acks older than 30s are swept".
func (r *Router) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.ackSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.SweepStale(time.Now())
		}
	}
}

// publishWithRetry sends env to the user's devices topic with
// exponential backoff (base 100ms, x2, up to 3 attempts), matching
// internal/syncengine's delta-publish retry policy.
func publishWithRetry(ctx context.Context, pub Publisher, userID string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal command envelope: %w", err)
	}
	topic := broker.UserDevicesTopic(userID)

	var lastErr error
	backoff := publishBackoffBase
	for attempt := 1; attempt <= publishMaxAttempts; attempt++ {
		msg := message.NewMessage(uuid.NewString(), body)
		if lastErr = pub.Publish(ctx, topic, msg); lastErr == nil {
			return nil
		}
		if attempt == publishMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("publish command after %d attempts: %w", publishMaxAttempts, lastErr)
}
