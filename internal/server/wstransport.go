package server

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/registry"
)

const writeDeadline = 5 * time.Second

// wsTransport adapts a gorilla connection to the registry transport. All
// writes come from the connection's single writer goroutine, so no extra
// locking is needed; Close is safe concurrently.
type wsTransport struct {
	conn  *websocket.Conn
	clock clockwork.Clock
}

var _ registry.Transport = (*wsTransport)(nil)

func newWSTransport(conn *websocket.Conn, clock clockwork.Clock) *wsTransport {
	return &wsTransport{conn: conn, clock: clock}
}

func (t *wsTransport) Send(data []byte) error {
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping() error {
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
