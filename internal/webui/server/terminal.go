package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cookterm/internal/session"
)

// wsUpgrader upgrades HTTP connections to WebSocket.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Allow all origins for local use; the server binds to localhost by default.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

type clientMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
	Data string `json:"data"`
}

// terminalWSHandler bridges the shared shell session over WebSocket.
//
// Client protocol:
// - {"type":"input","data":"..."} types into the shell.
// - {"type":"resize","cols":<int>,"rows":<int>} resizes the terminal.
// - Any other text or binary frame is raw input.
//
// The server sends raw output as binary frames and session events as JSON
// text frames: {"type":"event","event":{...}}.
func (s *Server) terminalWSHandler(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log().Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	msgs, cancel := s.Session.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range msgs {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			var err error
			switch m.Type {
			case session.MessageOutput:
				err = conn.WriteMessage(websocket.BinaryMessage, m.Output)
			default:
				var b []byte
				if b, err = json.Marshal(m); err == nil {
					err = conn.WriteMessage(websocket.TextMessage, b)
				}
			}
			if err != nil {
				s.log().Debug("websocket write failed", "err", err)
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		var cm clientMsg
		if json.Unmarshal(data, &cm) == nil && cm.Type != "" {
			switch cm.Type {
			case "resize":
				if cm.Cols > 0 && cm.Rows > 0 {
					if err := s.Session.Resize(cm.Cols, cm.Rows); err != nil {
						s.log().Warn("resize failed", "err", err)
					}
				}
				continue
			case "input":
				if cm.Data != "" {
					s.Session.Input([]byte(cm.Data))
				}
				continue
			}
		}
		if len(data) > 0 {
			s.Session.Input(data)
		}
	}
	cancel()
	<-done
}
