package http

import (
	"context"
	"fmt"
	"sync"

	"daily-quiz-bot/internal/app"
	"daily-quiz-bot/internal/domain"
	"github.com/google/uuid"
)

const sendBuffer = 32

// Hub is the app.Gateway over WebSocket connections. A chat is the private
// conversation with one user, so chat ids equal user ids.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*client
	messages   map[string]string // messageRef -> chatID
	identities map[string]domain.Identity
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*client),
		messages:   make(map[string]string),
		identities: make(map[string]domain.Identity),
	}
}

type client struct {
	chatID string
	send   chan outboundMessage

	mu     sync.Mutex
	closed bool
}

// enqueue never blocks; a client that stops reading loses frames.
func (c *client) enqueue(msg outboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("chat %s: connection closed", c.chatID)
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("chat %s: send buffer full", c.chatID)
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// register attaches a connection for id, replacing an older one.
func (h *Hub) register(id domain.Identity) *client {
	c := &client{chatID: id.UserID, send: make(chan outboundMessage, sendBuffer)}
	h.mu.Lock()
	old := h.clients[id.UserID]
	h.clients[id.UserID] = c
	h.identities[id.UserID] = id
	h.mu.Unlock()
	if old != nil {
		old.close()
	}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c.chatID] == c {
		delete(h.clients, c.chatID)
		for ref, chatID := range h.messages {
			if chatID == c.chatID {
				delete(h.messages, ref)
			}
		}
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) SendMessage(_ context.Context, chatID, text string, buttons [][]app.Button) (string, error) {
	ref := uuid.NewString()
	h.mu.Lock()
	c, ok := h.clients[chatID]
	if ok {
		h.messages[ref] = chatID
	}
	h.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("send to chat %s: %w", chatID, domain.ErrRenderFailure)
	}
	msg := outboundMessage{Type: "message", Payload: messagePayload{MessageID: ref, Text: text, Buttons: buttons}}
	if err := c.enqueue(msg); err != nil {
		return "", fmt.Errorf("send: %w: %w", domain.ErrRenderFailure, err)
	}
	return ref, nil
}

func (h *Hub) EditMessage(_ context.Context, chatID, messageRef, text string, buttons [][]app.Button) error {
	h.mu.RLock()
	c, ok := h.clients[chatID]
	owner, known := h.messages[messageRef]
	h.mu.RUnlock()
	if !ok || !known || owner != chatID {
		return fmt.Errorf("edit message %s in chat %s: %w", messageRef, chatID, domain.ErrRenderFailure)
	}
	msg := outboundMessage{Type: "edit", Payload: messagePayload{MessageID: messageRef, Text: text, Buttons: buttons}}
	if err := c.enqueue(msg); err != nil {
		return fmt.Errorf("edit: %w: %w", domain.ErrRenderFailure, err)
	}
	return nil
}

func (h *Hub) AnswerButton(_ context.Context, chatID, pressID, notice string) error {
	h.mu.RLock()
	c, ok := h.clients[chatID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("ack in chat %s: %w", chatID, domain.ErrRenderFailure)
	}
	if err := c.enqueue(outboundMessage{Type: "ack", Payload: ackPayload{ID: pressID, Notice: notice}}); err != nil {
		return fmt.Errorf("ack: %w: %w", domain.ErrRenderFailure, err)
	}
	return nil
}

// LookupIdentity returns the identity the user last connected with.
func (h *Hub) LookupIdentity(_ context.Context, userID string) (domain.Identity, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.identities[userID]
	if !ok {
		return domain.Identity{}, fmt.Errorf("identity of %s: %w", userID, domain.ErrUserNotFound)
	}
	return id, nil
}
