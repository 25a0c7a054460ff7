package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"daily-quiz-bot/internal/app"
	"daily-quiz-bot/internal/domain"
	"daily-quiz-bot/internal/logger"
	"github.com/gorilla/websocket"
)

// Dispatcher receives inbound chat events.
type Dispatcher interface {
	OnCommand(ctx context.Context, cmd app.Command)
	OnButtonPress(ctx context.Context, press app.ButtonPress)
}

type WSHandler struct {
	hub      *Hub
	bot      Dispatcher
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, bot Dispatcher, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		hub: hub,
		bot: bot,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type commandPayload struct {
	Name string `json:"name"`
	Args string `json:"args"`
}

type buttonPayload struct {
	ID        string `json:"id"`
	Data      string `json:"data"`
	MessageID string `json:"messageId"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type messagePayload struct {
	MessageID string         `json:"messageId"`
	Text      string         `json:"text"`
	Buttons   [][]app.Button `json:"buttons,omitempty"`
}

type ackPayload struct {
	ID     string `json:"id"`
	Notice string `json:"notice,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and feeds the user's frames to the bot.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := domain.Identity{
		UserID:    q.Get("userId"),
		Username:  strings.TrimPrefix(q.Get("username"), "@"),
		FirstName: q.Get("name"),
	}
	if id.UserID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := h.hub.register(id)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			// keep draining after a failed write; the read loop notices the dead conn
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "user", id.UserID, "error", err)
			}
		}
	}()
	h.log.Debug("ws connected", "user", id.UserID)

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "command":
			var p commandPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.Name == "" {
				h.reject(c, "invalid command payload")
				continue
			}
			h.bot.OnCommand(ctx, app.Command{Name: p.Name, Args: p.Args, ChatID: id.UserID, From: id})
		case "button":
			var p buttonPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.Data == "" {
				h.reject(c, "invalid button payload")
				continue
			}
			h.bot.OnButtonPress(ctx, app.ButtonPress{
				ID:         p.ID,
				Data:       p.Data,
				ChatID:     id.UserID,
				MessageRef: p.MessageID,
				From:       id,
			})
		default:
			h.reject(c, "unsupported message type")
		}
	}

	h.hub.unregister(c)
	<-writerDone
	h.log.Debug("ws disconnected", "user", id.UserID)
}

func (h *WSHandler) reject(c *client, message string) {
	if err := c.enqueue(outboundMessage{Type: "error", Payload: errorPayload{Message: message}}); err != nil {
		h.log.Debug("ws reject dropped", "chat", c.chatID, "error", err)
	}
}
