package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/farlink-core/internal/auth"
	"github.com/nerrad567/farlink-core/internal/device"
	"github.com/nerrad567/farlink-core/internal/infrastructure/config"
	"github.com/nerrad567/farlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/farlink-core/internal/signal"
)

// wsSendBufferSize is the default per-connection outbound buffer size.
const wsSendBufferSize = 256

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// WSTransport adapts a WebSocket connection to the signal.Transport
// interface. Sends are buffered and never block the caller: a slow peer
// loses messages rather than stalling the relay path.
type WSTransport struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	logger *logging.Logger
}

func newWSTransport(conn *websocket.Conn, bufferSize int, logger *logging.Logger) *WSTransport {
	if bufferSize <= 0 {
		bufferSize = wsSendBufferSize
	}
	return &WSTransport{
		conn:   conn,
		send:   make(chan []byte, bufferSize),
		closed: make(chan struct{}),
		logger: logger,
	}
}

// Send serializes v and queues it for the write pump. It returns
// ErrTransportClosed once the connection is torn down; a full buffer
// drops the message and returns nil.
func (t *WSTransport) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-t.closed:
		return signal.ErrTransportClosed
	default:
	}

	select {
	case t.send <- data:
		return nil
	case <-t.closed:
		return signal.ErrTransportClosed
	default:
		t.logger.Warn("websocket send buffer full, message dropped")
		return nil
	}
}

// Close tears the connection down. Safe to call more than once; the
// registry closes superseded transports and the read pump closes on exit.
func (t *WSTransport) Close() error {
	t.once.Do(func() {
		close(t.closed)
		//nolint:errcheck // Best-effort close frame before teardown
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.conn.Close() //nolint:errcheck // Connection is going away regardless
	})
	return nil
}

// writePump writes queued messages to the WebSocket connection and keeps
// it alive with protocol pings.
func (t *WSTransport) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		t.Close() //nolint:errcheck // Close is idempotent
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case <-t.closed:
			return
		case message := <-t.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			t.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			t.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection, classifies its credentials,
// admits it into the connection registry, and pumps its traffic through
// the message router until it drops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticator.Classify(r)
	if err != nil {
		s.logger.Warn("websocket admission rejected", "error", err)
		s.writeClassifyError(w, err)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	transport := newWSTransport(wsConn, s.wsCfg.SendBufferSize, s.logger)
	go transport.writePump(s.wsCfg)

	conn := s.conns.Admit(identity, transport)

	switch identity.Role {
	case auth.RoleDevice:
		// Admission is a registration: upsert the record, bump the
		// connection count, and promote the device online.
		name := r.URL.Query().Get("name")
		if _, err := s.registry.Register(r.Context(), identity.ID,
			device.RegisterAttrs{Name: name}); err != nil {
			s.logger.Error("device registration on admission failed",
				"device_id", identity.ID, "error", err)
		}
	case auth.RoleDashboard:
		// Fresh dashboards start from a complete inventory.
		devices, err := s.registry.List(r.Context())
		if err != nil {
			s.logger.Error("device list for dashboard failed", "error", err)
		} else if err := transport.Send(signal.NewDeviceList(devices)); err != nil {
			s.logger.Debug("device-list send failed",
				"client_id", identity.ID, "error", err)
		}
	}

	go s.readPump(conn, transport)
}

// readPump reads inbound messages and feeds them to the router. On exit
// it removes the connection and, for abnormal device departures, arms the
// reconnection scheduler.
func (s *Server) readPump(conn *signal.Connection, transport *WSTransport) {
	defer func() {
		removed := s.conns.Remove(conn)
		transport.Close() //nolint:errcheck // Close is idempotent

		if removed &&
			conn.Identity.Role == auth.RoleDevice &&
			!conn.Graceful() &&
			s.scheduler != nil {
			s.scheduler.Schedule(conn.Identity.ID)
		}
	}()

	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second

	transport.conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	transport.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	transport.conn.SetPongHandler(func(string) error {
		return transport.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := transport.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error",
					"role", conn.Identity.Role, "id", conn.Identity.ID, "error", err)
			} else {
				s.logger.Debug("websocket closed",
					"role", conn.Identity.Role, "id", conn.Identity.ID, "error", err)
			}
			return
		}
		// Any peer message resets the read deadline (keeps the connection
		// alive even if the client never answers protocol pings).
		//nolint:errcheck // Best-effort deadline reset
		transport.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))

		s.sigRouter.HandleInbound(conn, message)
	}
}
