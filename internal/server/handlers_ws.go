package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards connect from arbitrary origins, auth sits upstream
	},
}

// clientMessage is the client-to-server frame.
type clientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// Client-to-server message types.
const (
	clientMsgSubscribe   = "subscribe"
	clientMsgUnsubscribe = "unsubscribe"
	clientMsgPing        = "ping"
	clientMsgGetStats    = "get_stats"
)

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // upgrader has already written the HTTP error
	}

	id, err := s.registry.Attach(newWSTransport(conn, s.clock))
	if err != nil {
		if errors.Is(err, domain.ErrRegistryFull) {
			slog.Warn("Connection rejected, registry full")
		} else {
			slog.Error("Failed to attach connection", "error", err)
			conn.Close()
		}
		return nil
	}

	s.configureReadDeadline(conn, id)
	s.sendWelcome(id)
	s.readLoop(conn, id)

	s.registry.Detach(id)
	return nil
}

// configureReadDeadline bounds silent connections at the socket level and
// feeds protocol pongs into the registry heartbeat.
func (s *Server) configureReadDeadline(conn *websocket.Conn, id uuid.UUID) {
	refresh := func() {
		_ = conn.SetReadDeadline(s.clock.Now().Add(s.config.HeartbeatTimeout))
	}
	refresh()
	conn.SetPongHandler(func(string) error {
		s.registry.Heartbeat(id)
		refresh()
		return nil
	})
}

func (s *Server) sendWelcome(id uuid.UUID) {
	s.deliver(id, "", domain.MessageTypeConnection, map[string]any{
		"connection_id": id.String(),
		"status":        "connected",
		"topics":        domain.Topics(),
	})
}

// readLoop processes client frames until the connection drops. Any read
// activity counts as a heartbeat.
func (s *Server) readLoop(conn *websocket.Conn, id uuid.UUID) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WebSocket read failed", "connection_id", id.String(), "error", err)
			}
			return
		}
		s.registry.Heartbeat(id)
		_ = conn.SetReadDeadline(s.clock.Now().Add(s.config.HeartbeatTimeout))
		s.handleClientMessage(id, data)
	}
}

// handleClientMessage dispatches one client frame. Malformed input gets an
// error reply; the connection stays open.
func (s *Server) handleClientMessage(id uuid.UUID, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.deliverError(id, "invalid message format")
		return
	}

	switch msg.Type {
	case clientMsgSubscribe:
		topic, err := domain.ParseTopic(msg.Topic)
		if err != nil {
			s.deliverError(id, "unknown topic: "+msg.Topic)
			return
		}
		if err := s.registry.Subscribe(id, topic); err != nil {
			slog.Warn("Subscribe failed", "connection_id", id.String(), "topic", msg.Topic, "error", err)
			return
		}
		s.deliver(id, "", domain.MessageTypeSubscription, map[string]any{
			"topic":   string(topic),
			"success": true,
		})

	case clientMsgUnsubscribe:
		topic, err := domain.ParseTopic(msg.Topic)
		if err != nil {
			s.deliverError(id, "unknown topic: "+msg.Topic)
			return
		}
		if err := s.registry.Unsubscribe(id, topic); err != nil {
			slog.Warn("Unsubscribe failed", "connection_id", id.String(), "topic", msg.Topic, "error", err)
			return
		}
		s.deliver(id, "", domain.MessageTypeUnsubscription, map[string]any{
			"topic":   string(topic),
			"success": true,
		})

	case clientMsgPing:
		s.registry.Heartbeat(id)
		s.deliver(id, "", domain.MessageTypePong, nil)

	case clientMsgGetStats:
		stats := s.registry.Stats()
		s.deliver(id, "", domain.MessageTypeStats, stats)

	default:
		s.deliverError(id, "unknown message type: "+msg.Type)
	}
}

// deliver sends a personal message to one connection. Topic is empty:
// personal messages bypass topic routing.
func (s *Server) deliver(id uuid.UUID, topic domain.Topic, msgType string, payload any) {
	msg, err := domain.NewMessage(topic, msgType, payload, s.clock.Now())
	if err != nil {
		slog.Error("Failed to build message", "type", msgType, "error", err)
		return
	}
	if err := s.registry.Deliver(id, msg); err != nil {
		slog.Debug("Personal delivery failed", "connection_id", id.String(), "error", err)
	}
}

func (s *Server) deliverError(id uuid.UUID, reason string) {
	s.deliver(id, "", domain.MessageTypeError, map[string]string{"error": reason})
}
