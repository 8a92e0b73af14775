// apps/go-server/internal/httpserver/ws.go
//
// WebSocket view stream for one game.
// Every state change of the table, including message and flash expiry, is
// pushed as {"type":"view"}. The client may send intents on the same socket
// ({"action":"toggle","word":"Pub"}); each is answered with {"type":"result"}.
//
// One goroutine owns all writes (views, results, pings); the handler
// goroutine reads. Closing the table closes the stream.

package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/apps/go-server/internal/game"
	"github.com/robalobadob/connections/apps/go-server/internal/live"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 120 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1024
)

// wsMessage is every frame the server sends.
type wsMessage struct {
	Type   string    `json:"type"` // view | result | error
	Result string    `json:"result,omitempty"`
	Group  *groupDTO `json:"group,omitempty"`
	View   *viewDTO  `json:"view,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// handleWS upgrades the connection and streams the table until either side
// goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Warn().Err(err).Str("gameId", t.ID).Msg("ws upgrade")
		return
	}
	log.Debug().Str("gameId", t.ID).Msg("ws connected")

	views, cancel := t.Subscribe()
	replies := make(chan wsMessage, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, views, replies)
	}()

	s.readPump(r, conn, t, replies, done)
	cancel()
	<-done
	log.Debug().Str("gameId", t.ID).Msg("ws disconnected")
}

// readPump decodes intents until the connection fails or the writer stops.
func (s *Server) readPump(r *http.Request, conn *websocket.Conn, t *live.Table, replies chan<- wsMessage, done <-chan struct{}) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("gameId", t.ID).Msg("ws read")
			}
			return
		}

		var msg wsMessage
		var in intent
		if err := json.Unmarshal(data, &in); err != nil {
			msg = wsMessage{Type: "error", Error: "bad_json"}
		} else if res, ok := s.dispatch(r.Context(), t, in); ok {
			msg = wsMessage{Type: "result", Result: res.Result, Group: res.Group}
		} else {
			msg = wsMessage{Type: "error", Error: "unknown_action"}
		}

		select {
		case replies <- msg:
		case <-done:
			return
		}
	}
}

// writePump is the only writer on conn. It returns when views is closed or a
// write fails, and always closes conn.
func writePump(conn *websocket.Conn, views <-chan game.View, replies <-chan wsMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case v, ok := <-views:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed"))
				return
			}
			dto := newViewDTO(v)
			if err := conn.WriteJSON(wsMessage{Type: "view", View: &dto}); err != nil {
				return
			}
		case m := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
