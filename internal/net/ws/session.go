package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	server "github.com/otaviokmkm/Drakantos-Inspired-MMORPG"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/intake"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	loggingnetwork "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/network"
)

// Session pumps one admitted websocket. The read side stages client messages
// for the tick loop; the write side drains the subscriber's outbound queue.
type Session struct {
	handler *Handler
	conn    *websocket.Conn
	sub     *server.Subscriber
	limiter *intake.Limiter
	logger  *zap.Logger
}

func newSession(h *Handler, conn *websocket.Conn, sub *server.Subscriber, limiter *intake.Limiter) *Session {
	return &Session{
		handler: h,
		conn:    conn,
		sub:     sub,
		limiter: limiter,
		logger:  h.logger.With(zap.String("player", sub.PlayerID()), zap.String("session", sub.SessionID())),
	}
}

func (s *Session) readPump() {
	hub := s.handler.hub
	defer func() {
		if hub.Disconnect(s.sub.PlayerID(), s.sub.SessionID(), "") {
			s.logger.Info("session closed")
		}
		s.sub.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := hub.CommandContext(s.limiter)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("read failed", zap.Error(err))
			}
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			s.logger.Debug("discarding malformed message", zap.Error(err))
			continue
		}

		if msg.Type == proto.TypeHeartbeat {
			s.heartbeat(msg)
			continue
		}

		_, ok, reason := intake.StageClientCommand(ctx, s.sub.PlayerID(), msg)
		hub.RecordIntake(s.sub.PlayerID(), ok, reason)
		switch {
		case ok:
		case reason == intake.RejectRateLimited:
			s.publishRateLimited(msg.Type)
		case reason == intake.RejectUnsupported:
			s.logger.Debug("unknown message type", zap.String("type", msg.Type))
		default:
			s.logger.Debug("message rejected", zap.String("type", msg.Type), zap.String("reason", reason))
		}
	}
}

func (s *Session) heartbeat(msg proto.ClientMessage) {
	now := s.handler.now()
	clientSent := int64(msg.SentAt.Int())
	if _, ok := s.handler.hub.UpdateHeartbeat(s.sub.PlayerID(), s.sub.SessionID(), now, clientSent); !ok {
		return
	}
	data, err := proto.Encode(&proto.Heartbeat{ServerTime: now.UnixMilli(), ClientTime: clientSent})
	if err != nil {
		s.logger.Error("failed to marshal heartbeat ack", zap.Error(err))
		return
	}
	s.sub.Enqueue(data)
}

func (s *Session) publishRateLimited(kind string) {
	window := s.limiter.Actions
	budget := "action"
	if kind == proto.TypeInput {
		window = s.limiter.Moves
		budget = "move"
	}
	hub := s.handler.hub
	loggingnetwork.RateLimited(context.Background(), hub.Publisher(), hub.Tick(), logging.PlayerRef(s.sub.PlayerID()), loggingnetwork.RateLimitedPayload{
		Kind:  budget,
		Limit: window.Limit(),
		Count: window.Count(),
	}, nil)
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data := <-s.sub.Outbound():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.sub.Done():
			message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
			return
		}
	}
}
