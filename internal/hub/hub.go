// Package hub fans realtime messages out to connected clients.
package hub

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message kinds owned by the hub. Services add their own.
const (
	MsgChatMessage = "chat_message"
	MsgChatHistory = "chat_history"
	MsgPong        = "pong"
)

// Message is one frame pushed to a client.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Connection is a registered client. Send must not block; a full or
// closed connection reports an error.
type Connection interface {
	ID() string
	UserID() uuid.UUID
	Send(msg Message) error
	Close() error
}

type scope int

const (
	scopeConn scope = iota
	scopeUser
	scopeAll
)

// Recipients selects who a broadcast reaches.
type Recipients struct {
	scope  scope
	connID string
	userID uuid.UUID
}

// To addresses a single connection.
func To(c Connection) Recipients { return Recipients{scope: scopeConn, connID: c.ID()} }

// ToUser addresses every connection of one user.
func ToUser(userID uuid.UUID) Recipients { return Recipients{scope: scopeUser, userID: userID} }

// Everyone addresses every registered connection.
func Everyone() Recipients { return Recipients{scope: scopeAll} }

func (r Recipients) match(c Connection) bool {
	switch r.scope {
	case scopeConn:
		return c.ID() == r.connID
	case scopeUser:
		return c.UserID() == r.userID
	default:
		return true
	}
}

// ChatMessage is one line of global chat.
type ChatMessage struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Config bounds the chat history.
type Config struct {
	ChatHistory   int // messages retained
	ChatReplay    int // messages sent to a new connection
	ChatMaxLength int // runes per message
}

// DefaultConfig keeps 100 messages, replays 50 and caps lines at 200 runes.
func DefaultConfig() Config {
	return Config{ChatHistory: 100, ChatReplay: 50, ChatMaxLength: 200}
}

// Hub tracks connections and delivers messages. It implements ports.Broadcaster.
type Hub struct {
	cfg Config
	log zerolog.Logger
	now func() time.Time

	mu    sync.RWMutex
	conns map[string]Connection

	chatMu sync.Mutex
	chat   []ChatMessage
}

// New creates an empty hub.
func New(cfg Config, log zerolog.Logger) *Hub {
	def := DefaultConfig()
	if cfg.ChatHistory <= 0 {
		cfg.ChatHistory = def.ChatHistory
	}
	if cfg.ChatReplay <= 0 {
		cfg.ChatReplay = def.ChatReplay
	}
	if cfg.ChatMaxLength <= 0 {
		cfg.ChatMaxLength = def.ChatMaxLength
	}
	return &Hub{
		cfg:   cfg,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		conns: make(map[string]Connection),
	}
}

// Register adds c and replays recent chat to it.
func (h *Hub) Register(c Connection) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	n := len(h.conns)
	h.mu.Unlock()

	h.log.Debug().Str("conn_id", c.ID()).Str("user_id", c.UserID().String()).Int("connections", n).Msg("connection registered")
	h.Broadcast(h.message(MsgChatHistory, h.ChatHistory(h.cfg.ChatReplay)), To(c))
}

// Unregister removes c and closes it. Unknown connections are ignored.
func (h *Hub) Unregister(c Connection) {
	h.mu.Lock()
	_, ok := h.conns[c.ID()]
	delete(h.conns, c.ID())
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		h.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("close after unregister")
	}
}

// Broadcast sends msg to every matching connection and returns how many
// accepted it. A connection whose send fails is unregistered.
func (h *Hub) Broadcast(msg Message, to Recipients) int {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = h.now()
	}

	h.mu.RLock()
	targets := make([]Connection, 0, len(h.conns))
	for _, c := range h.conns {
		if to.match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.Send(msg); err != nil {
			h.log.Warn().Err(err).Str("conn_id", c.ID()).Str("type", msg.Type).Msg("send failed, dropping connection")
			h.Unregister(c)
			continue
		}
		delivered++
	}
	return delivered
}

// NotifyUser pushes a message to all of one user's connections.
func (h *Hub) NotifyUser(userID uuid.UUID, kind string, payload any) int {
	return h.Broadcast(h.message(kind, payload), ToUser(userID))
}

// NotifyAll pushes a message to every connection.
func (h *Hub) NotifyAll(kind string, payload any) int {
	return h.Broadcast(h.message(kind, payload), Everyone())
}

// PostChat records a chat line and broadcasts it. Blank lines are dropped.
func (h *Hub) PostChat(userID uuid.UUID, text string) (*ChatMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if utf8.RuneCountInString(text) > h.cfg.ChatMaxLength {
		text = string([]rune(text)[:h.cfg.ChatMaxLength])
	}
	msg := ChatMessage{ID: uuid.New(), UserID: userID, Text: text, SentAt: h.now()}

	h.chatMu.Lock()
	h.chat = append(h.chat, msg)
	if over := len(h.chat) - h.cfg.ChatHistory; over > 0 {
		h.chat = append([]ChatMessage(nil), h.chat[over:]...)
	}
	h.chatMu.Unlock()

	h.NotifyAll(MsgChatMessage, msg)
	return &msg, true
}

// ChatHistory returns up to the last n chat lines, oldest first.
func (h *Hub) ChatHistory(n int) []ChatMessage {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()
	if n <= 0 || n > len(h.chat) {
		n = len(h.chat)
	}
	out := make([]ChatMessage, n)
	copy(out, h.chat[len(h.chat)-n:])
	return out
}

// Count is the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Pong answers a client ping on its own connection.
func (h *Hub) Pong(c Connection) {
	h.Broadcast(h.message(MsgPong, nil), To(c))
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]Connection)
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (h *Hub) message(kind string, payload any) Message {
	return Message{Type: kind, Data: payload, Timestamp: h.now()}
}
