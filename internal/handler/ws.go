package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pyx-backend/internal/model"
	"pyx-backend/internal/service"
	"pyx-backend/pkg/logger"
)

const (
	wsReadLimit    = 64 * 1024
	wsPongWait     = 60 * time.Second
	wsPingInterval = 50 * time.Second
	wsWriteWait    = 10 * time.Second
)

// LiveChat serves one visitor's assistant over a WebSocket.
type LiveChat struct {
	chat     *ChatHandler
	upgrader websocket.Upgrader
}

func NewLiveChat(chat *ChatHandler, allowedOrigins []string) *LiveChat {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &LiveChat{
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(resp model.WSResponse) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(resp)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (l *LiveChat) Handle(c *gin.Context) {
	a := l.chat.assistant(c)
	if a == nil {
		return
	}

	raw, err := l.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("Failed to upgrade WebSocket: %v", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	raw.SetReadLimit(wsReadLimit)
	raw.SetReadDeadline(time.Now().Add(wsPongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	state := a.State()
	conn.send(model.WSResponse{Type: "state", State: &state})

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("WebSocket error for visitor %s: %v", a.VisitorID(), err)
			}
			return
		}

		var req model.WSRequest
		if err := json.Unmarshal(data, &req); err != nil {
			conn.send(model.WSResponse{Type: "error", Error: "invalid JSON message"})
			continue
		}
		if err := l.dispatch(ctx, conn, a, req); err != nil {
			conn.send(model.WSResponse{Type: "error", Error: err.Error()})
		}
	}
}

func (l *LiveChat) dispatch(ctx context.Context, conn *wsConn, a *service.Assistant, req model.WSRequest) error {
	sendState := func(s model.ChatState) error {
		return conn.send(model.WSResponse{Type: "state", State: &s})
	}

	switch req.Type {
	case "open":
		return sendState(a.Open(ctx, req.Path))
	case "close":
		state, err := a.Close(ctx)
		if err != nil {
			return err
		}
		return sendState(state)
	case "page":
		return sendState(a.Navigate(ctx, req.Path))
	case "clear":
		if _, err := a.ClearChat(ctx); err != nil {
			return err
		}
		return sendState(a.State())
	case "message":
		// replies are generated off the read loop so pings keep flowing
		go func() {
			resp, err := a.SendWithProgress(ctx, req.Content, func(ev service.ProgressEvent) {
				if ev.Stage == service.StageGenerating {
					conn.send(model.WSResponse{Type: "typing", Typing: true})
				}
			})
			if err != nil {
				conn.send(model.WSResponse{Type: "error", Error: err.Error()})
				return
			}
			conn.send(model.WSResponse{Type: "message", Message: &resp.UserMessage})
			conn.send(model.WSResponse{Type: "message", Message: &resp.Reply})
			conn.send(model.WSResponse{Type: "typing", Typing: false})
		}()
		return nil
	default:
		return &service.ValidationError{Field: "type", Message: "unknown message type " + req.Type}
	}
}
