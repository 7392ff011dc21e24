package realtime

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"symgraph/internal/core/errors"
	"symgraph/internal/shared/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// requestLimiters throttles inbound messages per client: 20 requests/second
// sustained, bursts of 40. Idle client limiters are dropped after ten
// minutes.
var requestLimiters = util.NewLimiterRegistry(20, 40, 10*time.Minute)

// wsConn serializes writes; gorilla connections allow one concurrent writer
// and pushes arrive from notification goroutines.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(v); err != nil {
		slog.Warn("websocket write failed", "error", err)
		return err
	}
	return nil
}

// Handler upgrades the connection, admits the client, and runs the message
// loop. Internal failures never escape as panics or dropped connections;
// they come back to the client as error envelopes.
func (s *System) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()

		clientID := uuid.New().String()
		conn := &wsConn{ws: ws}

		if err := s.Connect(clientID); err != nil {
			_ = conn.send(errorResponse(err))
			return
		}
		defer s.Disconnect(clientID)
		defer requestLimiters.Forget(clientID)
		slog.Info("websocket client connected", "client_id", clientID)

		if err := conn.send(Response{Type: "connected", Message: clientID}); err != nil {
			return
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				slog.Info("websocket client disconnected", "client_id", clientID, "error", err.Error())
				return
			}

			if !requestLimiters.Get(clientID).Allow(1) {
				if conn.send(errorResponse(errors.New(errors.CodeValidationError, "request rate limit exceeded"))) != nil {
					return
				}
				continue
			}

			req, err := DecodeRequest(data)
			if err != nil {
				if conn.send(errorResponse(errors.Wrap(err, errors.CodeValidationError, "malformed request"))) != nil {
					return
				}
				continue
			}

			resp := s.HandleRequest(r.Context(), clientID, req, func(push Response) {
				_ = conn.send(push)
			})
			if conn.send(resp) != nil {
				return
			}
		}
	}
}
