package ws

import (
	"context"
	"errors"
	"net"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	server "github.com/otaviokmkm/Drakantos-Inspired-MMORPG"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/auth"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/intake"
	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
	loggingnetwork "github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging/network"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

const (
	rejectRateLimited  = "rate_limited"
	rejectMissingToken = "missing_token"
	rejectInvalidToken = "invalid_token"
	rejectAdmission    = "admission_failed"
)

// TokenVerifier resolves a bearer credential to an account id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type HandlerConfig struct {
	Logger      *zap.Logger
	Verifier    TokenVerifier
	Admission   *intake.AdmissionLimiter
	MoveLimit   int
	ActionLimit int
	Now         func() time.Time
}

// Handler upgrades authenticated requests and runs one Session per socket.
type Handler struct {
	hub       *server.Hub
	logger    *zap.Logger
	verifier  TokenVerifier
	admission *intake.AdmissionLimiter
	moveLimit int
	actLimit  int
	now       func() time.Time
	upgrader  websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	moveLimit := cfg.MoveLimit
	if moveLimit <= 0 {
		moveLimit = intake.DefaultMoveLimit
	}
	actLimit := cfg.ActionLimit
	if actLimit <= 0 {
		actLimit = intake.DefaultActionLimit
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:       hub,
		logger:    logger.Named("ws"),
		verifier:  cfg.Verifier,
		admission: cfg.Admission,
		moveLimit: moveLimit,
		actLimit:  actLimit,
		now:       now,
		upgrader:  upgrader,
	}
}

// Handle runs the handshake: per-IP throttle, credential check, upgrade,
// admission. It blocks until the connection closes.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	ip := remoteIP(r)
	if !h.admission.Allow(ip, h.now()) {
		h.reject(w, r, nethttp.StatusTooManyRequests, rejectRateLimited, "")
		return
	}

	accountID, err := h.verify(auth.TokenFromRequest(r))
	if err != nil {
		reason := rejectInvalidToken
		if errors.Is(err, auth.ErrMissingToken) {
			reason = rejectMissingToken
		}
		h.reject(w, r, nethttp.StatusUnauthorized, reason, "")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.String("player", accountID), zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	sessionID := uuid.NewString()
	sub, err := h.hub.Admit(r.Context(), server.Admission{AccountID: accountID, SessionID: sessionID})
	if err != nil {
		h.logger.Error("admission failed", zap.String("player", accountID), zap.Error(err))
		h.publishRejection(accountID, rejectAdmission, r.RemoteAddr)
		message := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "admission failed")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.logger.Info("session admitted",
		zap.String("player", accountID),
		zap.String("session", sessionID),
		zap.String("remote", ip),
	)

	session := newSession(h, conn, sub, intake.NewLimiter(h.moveLimit, h.actLimit))
	go session.writePump()
	session.readPump()
}

func (h *Handler) verify(token string) (string, error) {
	if token == "" {
		return "", auth.ErrMissingToken
	}
	if h.verifier == nil {
		return "", auth.ErrInvalidToken
	}
	return h.verifier.Verify(token)
}

func (h *Handler) reject(w nethttp.ResponseWriter, r *nethttp.Request, status int, reason, accountID string) {
	h.logger.Debug("handshake rejected", zap.String("reason", reason), zap.String("remote", r.RemoteAddr))
	h.publishRejection(accountID, reason, r.RemoteAddr)
	nethttp.Error(w, reason, status)
}

func (h *Handler) publishRejection(accountID, reason, remote string) {
	actor := logging.EntityRef{}
	if accountID != "" {
		actor = logging.PlayerRef(accountID)
	}
	loggingnetwork.AdmissionRejected(context.Background(), h.hub.Publisher(), h.hub.Tick(), actor, loggingnetwork.AdmissionRejectedPayload{
		Reason:     reason,
		RemoteAddr: remote,
	}, nil)
}

func remoteIP(r *nethttp.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
