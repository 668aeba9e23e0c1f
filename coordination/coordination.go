// Package coordination makes the two independently-connecting player
// streams of a match agree on when to replay history. The only shared
// state is the broker's expiring key/value store, so correctness holds
// across server processes, not just goroutines.
package coordination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/models"
	"github.com/icehouse-dev/curling-server/pubsub"
)

type MessageType string

const (
	MsgStateUpdated      MessageType = "state_updated"
	MsgPresenceUpdated   MessageType = "presence_updated"
	MsgTeamConfigUpdated MessageType = "team_config_updated"
	MsgInitialSync       MessageType = "initial_sync"
)

// Message is the envelope on a match channel. State-change notifications
// carry the new state id; coordination traffic carries only the type.
type Message struct {
	Type    MessageType `json:"type"`
	MatchID string      `json:"match_id"`
	StateID string      `json:"state_id,omitempty"`
}

const (
	// HeartbeatInterval also bounds every poll on the match channel, so a
	// waiting stream can keep its connection and presence key alive.
	HeartbeatInterval = 15 * time.Second

	// PresenceTTL spans several heartbeats so a single dropped renewal
	// does not flap the barrier.
	PresenceTTL = 3 * HeartbeatInterval

	// Team config outlives any realistic match.
	teamConfigTTL = 24 * time.Hour

	// The signal lock only needs to cover the race window between the two
	// streams noticing both sides are ready.
	signalTTL = 10 * time.Second
)

// ErrBarrierTimeout is returned when the barrier wait outlives its budget;
// the stream is torn down and the client must reconnect.
var ErrBarrierTimeout = errors.New("coordination: barrier wait exhausted")

func Channel(matchID uuid.UUID) string {
	return fmt.Sprintf("match:%s:events", matchID)
}

func presenceKey(matchID uuid.UUID, side models.Side) string {
	return fmt.Sprintf("match:%s:presence:%s", matchID, side)
}

func teamConfigKey(matchID uuid.UUID, side models.Side) string {
	return fmt.Sprintf("match:%s:teamcfg:%s", matchID, side)
}

func signalKey(matchID uuid.UUID) string {
	return fmt.Sprintf("match:%s:sync_signal", matchID)
}

// Coordinator wraps the broker with match-scoped presence, config and
// barrier operations.
type Coordinator struct {
	broker pubsub.Broker
	logger *slog.Logger

	// Poll bounds each wait on the match channel. Defaults to
	// HeartbeatInterval; tests shorten it.
	Poll time.Duration
}

func New(broker pubsub.Broker, logger *slog.Logger) *Coordinator {
	return &Coordinator{broker: broker, logger: logger, Poll: HeartbeatInterval}
}

func (c *Coordinator) Subscribe(ctx context.Context, matchID uuid.UUID) (pubsub.Subscription, error) {
	return c.broker.Subscribe(ctx, Channel(matchID))
}

func (c *Coordinator) Publish(ctx context.Context, matchID uuid.UUID, msg Message) error {
	msg.MatchID = matchID.String()
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal coordination message: %w", err)
	}
	return c.broker.Publish(ctx, Channel(matchID), payload)
}

// PublishStateChanged announces a freshly persisted state on the match
// channel; streams re-read the state by id.
func (c *Coordinator) PublishStateChanged(ctx context.Context, matchID, stateID uuid.UUID) error {
	return c.Publish(ctx, matchID, Message{Type: MsgStateUpdated, StateID: stateID.String()})
}

// AnnouncePresence sets this stream's presence key and tells the opponent.
func (c *Coordinator) AnnouncePresence(ctx context.Context, matchID uuid.UUID, side models.Side) error {
	if err := c.broker.SetWithTTL(ctx, presenceKey(matchID, side), "1", PresenceTTL); err != nil {
		return fmt.Errorf("failed to set presence key: %w", err)
	}
	return c.Publish(ctx, matchID, Message{Type: MsgPresenceUpdated})
}

func (c *Coordinator) RenewPresence(ctx context.Context, matchID uuid.UUID, side models.Side) error {
	return c.broker.RenewTTL(ctx, presenceKey(matchID, side), PresenceTTL)
}

// ClearPresence removes only this stream's own key.
func (c *Coordinator) ClearPresence(ctx context.Context, matchID uuid.UUID, side models.Side) error {
	return c.broker.Delete(ctx, presenceKey(matchID, side))
}

// MarkTeamConfigured records that a side finished roster configuration so
// streams need not poll the database for it.
func (c *Coordinator) MarkTeamConfigured(ctx context.Context, matchID uuid.UUID, side models.Side) error {
	if err := c.broker.SetWithTTL(ctx, teamConfigKey(matchID, side), "1", teamConfigTTL); err != nil {
		return fmt.Errorf("failed to set team config key: %w", err)
	}
	return c.Publish(ctx, matchID, Message{Type: MsgTeamConfigUpdated})
}

// bothReady reports whether both presence keys and both team-config keys
// currently exist.
func (c *Coordinator) bothReady(ctx context.Context, matchID uuid.UUID) (bool, error) {
	n, err := c.broker.Exists(ctx,
		presenceKey(matchID, models.SideFirst),
		presenceKey(matchID, models.SideSecond),
		teamConfigKey(matchID, models.SideFirst),
		teamConfigKey(matchID, models.SideSecond),
	)
	if err != nil {
		return false, err
	}
	return n == 4, nil
}

// AwaitInitialSync blocks until the initial_sync signal for the match is
// observed on sub. Whichever stream first sees both sides ready takes the
// signal lock and publishes the signal exactly once; every waiter,
// publisher included, returns on receipt. heartbeat runs on every idle
// poll so the underlying connection and presence key stay alive; its error
// aborts the wait. Transient broker errors are absorbed by the next tick.
func (c *Coordinator) AwaitInitialSync(ctx context.Context, matchID uuid.UUID, side models.Side, sub pubsub.Subscription, maxWait time.Duration, heartbeat func() error) error {
	deadline := time.Now().Add(maxWait)
	for {
		if time.Now().After(deadline) {
			return ErrBarrierTimeout
		}

		ready, err := c.bothReady(ctx, matchID)
		if err != nil {
			c.logger.Warn("barrier readiness check failed", slog.String("match_id", matchID.String()), slog.Any("error", err))
		} else if ready {
			won, err := c.broker.SetIfAbsent(ctx, signalKey(matchID), side.String(), signalTTL)
			if err != nil {
				c.logger.Warn("signal lock attempt failed", slog.String("match_id", matchID.String()), slog.Any("error", err))
			} else if won {
				if err := c.Publish(ctx, matchID, Message{Type: MsgInitialSync}); err != nil {
					// Release the lock so the opponent can retry the signal.
					_ = c.broker.Delete(ctx, signalKey(matchID))
					c.logger.Warn("initial_sync publish failed", slog.String("match_id", matchID.String()), slog.Any("error", err))
				}
			}
		}

		payload, err := sub.Next(ctx, c.Poll)
		switch {
		case errors.Is(err, pubsub.ErrTimeout):
			if err := heartbeat(); err != nil {
				return err
			}
			continue
		case err != nil:
			return fmt.Errorf("barrier wait failed: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.logger.Warn("dropping malformed coordination message", slog.Any("error", err))
			continue
		}
		if msg.Type == MsgInitialSync {
			return nil
		}
		// presence/config updates just trigger the next readiness check.
	}
}
