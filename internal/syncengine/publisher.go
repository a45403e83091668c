// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/streamforge/discovery/internal/broker"
)

// DeltaPublisher is the subset of internal/broker the engine publishes
// deltas through.
type DeltaPublisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

var _ DeltaPublisher = (*broker.Publisher)(nil)

const (
	publishBackoffBase = 100 * time.Millisecond
	publishMaxAttempts = 3
)

// publishWithRetry sends env to the user's sync topic with exponential
// backoff (base 100ms, x2, up to 3 attempts), per spec.md §4.E.
func publishWithRetry(ctx context.Context, pub DeltaPublisher, userID string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal sync envelope: %w", err)
	}
	topic := broker.UserSyncTopic(userID)

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
	return fmt.Errorf("publish sync delta after %d attempts: %w", publishMaxAttempts, lastErr)
}
