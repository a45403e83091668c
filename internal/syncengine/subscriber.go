// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/streamforge/discovery/internal/broker"
)

// DeltaSubscriber is the subset of internal/broker a device subscribes
// against to receive its peers' deltas.
type DeltaSubscriber interface {
	Subscribe(ctx context.Context, topic string, handle func(context.Context, *message.Message) error) error
}

var _ DeltaSubscriber = (*broker.Subscriber)(nil)

// subscribe attaches to the user's sync topic and dispatches every
// received envelope to the engine, skipping deltas this deviceID itself
// published — every device subscribes on connect, per spec.md §4.E.
func (e *Engine) subscribe(ctx context.Context) error {
	topic := broker.UserSyncTopic(e.userID)
	return e.sub.Subscribe(ctx, topic, func(ctx context.Context, msg *message.Message) error {
		var env Envelope
		if err := unmarshalEnvelope(msg.Payload, &env); err != nil {
			return fmt.Errorf("unmarshal sync envelope: %w", err)
		}
		return e.dispatch(ctx, env)
	})
}

// dispatch applies one received envelope's effect, expanding batch
// envelopes into their constituent deltas first.
func (e *Engine) dispatch(ctx context.Context, env Envelope) error {
	wallMS := time.Now().UnixMilli()

	switch env.Type {
	case DeltaBatch:
		var b Batch
		if err := reencode(env.Payload, &b); err != nil {
			return fmt.Errorf("decode batch envelope: %w", err)
		}
		for _, inner := range b.Envelopes {
			if err := e.dispatch(ctx, inner); err != nil {
				return err
			}
		}
		return nil

	case DeltaWatchlistAdd:
		var d WatchlistAddDelta
		if err := reencode(env.Payload, &d); err != nil {
			return fmt.Errorf("decode watchlist add delta: %w", err)
		}
		if d.DeviceID == e.deviceID {
			return nil
		}
		return e.watchlist.MergeAdd(ctx, d, wallMS)

	case DeltaWatchlistRemove:
		var d WatchlistRemoveDelta
		if err := reencode(env.Payload, &d); err != nil {
			return fmt.Errorf("decode watchlist remove delta: %w", err)
		}
		if d.DeviceID == e.deviceID {
			return nil
		}
		return e.watchlist.MergeRemove(ctx, d, wallMS)

	case DeltaProgress:
		var d ProgressDelta
		if err := reencode(env.Payload, &d); err != nil {
			return fmt.Errorf("decode progress delta: %w", err)
		}
		if d.DeviceID == e.deviceID {
			return nil
		}
		return e.progress.Merge(ctx, d, wallMS)

	default:
		return fmt.Errorf("unknown sync delta type %q", env.Type)
	}
}

func unmarshalEnvelope(body []byte, env *Envelope) error {
	return json.Unmarshal(body, env)
}

// reencode round-trips a decoded any (json.Unmarshal leaves envelope
// payloads as map[string]any) into dst's concrete type.
func reencode(src any, dst any) error {
	body, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}
