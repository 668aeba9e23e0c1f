package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/icehouse-dev/curling-server/coordination"
	"github.com/icehouse-dev/curling-server/middleware"
	"github.com/icehouse-dev/curling-server/models"
	"github.com/icehouse-dev/curling-server/pubsub"
	"github.com/icehouse-dev/curling-server/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the frontend origin once it is deployed.
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 512

	// How long a player stream waits for the opponent before giving up.
	barrierMaxWait = 5 * time.Minute
)

// Stream frame event names. Replayed history arrives as
// historical_state_update, the newest frame of a replay as
// latest_state_update, and every live update as state_update.
const (
	eventHistoricalState = "historical_state_update"
	eventLatestState     = "latest_state_update"
	eventStateUpdate     = "state_update"
)

// StreamEvent is one frame on a match stream.
type StreamEvent struct {
	Event string            `json:"event"`
	State *models.StateView `json:"state,omitempty"`
}

type StreamHandler struct {
	matchService services.MatchService
	coordinator  *coordination.Coordinator
	logger       *slog.Logger
}

func NewStreamHandler(matchService services.MatchService, coordinator *coordination.Coordinator, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		matchService: matchService,
		coordinator:  coordinator,
		logger:       logger,
	}
}

// ServeMatchStream upgrades the connection and runs the session until the
// client leaves or the stream errors out. Authenticated users bound to a
// team get the player path (presence, barrier, end replay); everyone else
// is a viewer and just gets the current snapshot plus live updates.
func (h *StreamHandler) ServeMatchStream(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.matchService.GetMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	side, isPlayer := h.playerSide(r, matchID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	session := &streamSession{
		handler:  h,
		conn:     conn,
		matchID:  matchID,
		side:     side,
		isPlayer: isPlayer,
		logger: h.logger.With(
			slog.String("match_id", matchID.String()),
			slog.Bool("player", isPlayer),
		),
	}
	session.run(r.Context())
}

func (h *StreamHandler) playerSide(r *http.Request, matchID uuid.UUID) (models.Side, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		return 0, false
	}
	side, err := h.matchService.SideOf(r.Context(), userID, matchID)
	if err != nil {
		return 0, false
	}
	return side, true
}

type streamSession struct {
	handler  *StreamHandler
	conn     *websocket.Conn
	matchID  uuid.UUID
	side     models.Side
	isPlayer bool
	logger   *slog.Logger
}

func (s *streamSession) run(ctx context.Context) {
	defer s.conn.Close()

	coordinator := s.handler.coordinator

	// Subscribe before reading any state so no update published during
	// the snapshot or replay is lost.
	sub, err := coordinator.Subscribe(ctx, s.matchID)
	if err != nil {
		s.logger.Error("failed to subscribe to match channel", slog.Any("error", err))
		return
	}
	defer sub.Close()

	if s.isPlayer {
		if err := coordinator.AnnouncePresence(ctx, s.matchID, s.side); err != nil {
			s.logger.Error("failed to announce presence", slog.Any("error", err))
			return
		}
		defer func() {
			if err := coordinator.ClearPresence(context.Background(), s.matchID, s.side); err != nil {
				s.logger.Warn("failed to clear presence", slog.Any("error", err))
			}
		}()

		heartbeat := func() error {
			if err := coordinator.RenewPresence(ctx, s.matchID, s.side); err != nil {
				s.logger.Warn("presence renewal failed", slog.Any("error", err))
			}
			return s.ping()
		}
		if err := coordinator.AwaitInitialSync(ctx, s.matchID, s.side, sub, barrierMaxWait, heartbeat); err != nil {
			if errors.Is(err, coordination.ErrBarrierTimeout) {
				s.logger.Info("barrier wait timed out, closing stream")
			} else {
				s.logger.Warn("barrier wait failed", slog.Any("error", err))
			}
			return
		}
		if err := s.replayCurrentEnd(ctx); err != nil {
			s.logger.Warn("end replay failed", slog.Any("error", err))
			return
		}
	} else {
		if err := s.sendSnapshot(ctx); err != nil {
			s.logger.Warn("snapshot send failed", slog.Any("error", err))
			return
		}
	}

	s.pump(ctx, sub)
}

// pump runs the read and write sides until either fails. The read side
// only consumes control frames; clients drive the match over HTTP.
func (s *streamSession) pump(ctx context.Context, sub pubsub.Subscription) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.conn.SetReadLimit(maxMessageSize)
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		coordinator := s.handler.coordinator
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			payload, err := sub.Next(ctx, coordinator.Poll)
			if errors.Is(err, pubsub.ErrTimeout) {
				if s.isPlayer {
					if err := coordinator.RenewPresence(ctx, s.matchID, s.side); err != nil {
						s.logger.Warn("presence renewal failed", slog.Any("error", err))
					}
				}
				if err := s.ping(); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}

			var msg coordination.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				s.logger.Warn("dropping malformed stream message", slog.Any("error", err))
				continue
			}
			if msg.Type != coordination.MsgStateUpdated {
				continue
			}
			stateID, err := uuid.Parse(msg.StateID)
			if err != nil {
				s.logger.Warn("dropping state update with bad state id", slog.String("state_id", msg.StateID))
				continue
			}
			view, err := s.handler.matchService.StateViewByID(ctx, s.matchID, stateID)
			if err != nil {
				s.logger.Warn("failed to build state view", slog.Any("error", err))
				continue
			}
			if err := s.send(StreamEvent{Event: eventStateUpdate, State: view}); err != nil {
				return err
			}
		}
	})

	if err := g.Wait(); err != nil && !isExpectedClose(err) {
		s.logger.Info("stream closed", slog.Any("reason", err))
	}
}

// replayCurrentEnd sends every state of the end in progress, oldest first,
// marking all but the newest as historical.
func (s *streamSession) replayCurrentEnd(ctx context.Context) error {
	latest, err := s.handler.matchService.LatestStateView(ctx, s.matchID)
	if err != nil {
		return err
	}
	views, err := s.handler.matchService.EndStateViews(ctx, s.matchID, latest.EndNumber)
	if err != nil {
		return err
	}
	for _, event := range replayEvents(views) {
		if err := s.send(event); err != nil {
			return err
		}
	}
	return nil
}

// replayEvents wraps an end's states for replay: every frame but the
// newest is historical, the newest is the latest frame.
func replayEvents(views []*models.StateView) []StreamEvent {
	events := make([]StreamEvent, len(views))
	for i, view := range views {
		name := eventHistoricalState
		if i == len(views)-1 {
			name = eventLatestState
		}
		events[i] = StreamEvent{Event: name, State: view}
	}
	return events
}

func (s *streamSession) sendSnapshot(ctx context.Context) error {
	view, err := s.handler.matchService.LatestStateView(ctx, s.matchID)
	if err != nil {
		return err
	}
	return s.send(StreamEvent{Event: eventLatestState, State: view})
}

func (s *streamSession) send(event StreamEvent) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(event)
}

func (s *streamSession) ping() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, context.Canceled)
}
