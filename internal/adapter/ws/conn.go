// Package ws serves hub connections over gorilla websockets.
package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"casino-engine/internal/core/ports"
	"casino-engine/internal/hub"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrClosed       = errors.New("ws: connection closed")
	ErrSlowConsumer = errors.New("ws: send buffer full")
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096

	defaultMaxInbound    = 10
	defaultInboundWindow = time.Second
)

// Config tunes every connection.
type Config struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	AllowedOrigins []string // empty allows any origin

	// MaxInbound frames of any type are handled per InboundWindow; the rest
	// are dropped unread by the hub.
	MaxInbound    int
	InboundWindow time.Duration
}

// Conn is one websocket client. Outbound messages queue in a buffered
// channel drained by a single writer goroutine.
type Conn struct {
	id           string
	user         uuid.UUID
	ws           *websocket.Conn
	send         chan hub.Message
	writeTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once
	log          zerolog.Logger

	// owned by the read goroutine
	maxInbound    int64
	inboundWindow time.Duration
	windowID      int64
	inCount       int64
}

// NewConn wraps an upgraded socket.
func NewConn(socket *websocket.Conn, userID uuid.UUID, cfg Config, log zerolog.Logger) *Conn {
	id := uuid.NewString()
	if cfg.MaxInbound <= 0 {
		cfg.MaxInbound = defaultMaxInbound
	}
	if cfg.InboundWindow <= 0 {
		cfg.InboundWindow = defaultInboundWindow
	}
	return &Conn{
		id:            id,
		user:          userID,
		ws:            socket,
		send:          make(chan hub.Message, cfg.SendBuffer),
		writeTimeout:  cfg.WriteTimeout,
		done:          make(chan struct{}),
		log:           log.With().Str("conn_id", id).Logger(),
		maxInbound:    int64(cfg.MaxInbound),
		inboundWindow: cfg.InboundWindow,
	}
}

func (c *Conn) ID() string        { return c.id }
func (c *Conn) UserID() uuid.UUID { return c.user }

// Send queues msg without blocking.
func (c *Conn) Send(msg hub.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			err = c.ws.Close()
		}
	})
	return err
}

type inbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-c.send:
			c.deadline()
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				_ = c.Close()
				return
			}
		case <-ticker.C:
			c.deadline()
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) deadline() {
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
}

// admit charges one inbound frame to the current window.
func (c *Conn) admit(now time.Time) bool {
	id, _ := ports.Window(now, c.inboundWindow)
	if id != c.windowID {
		c.windowID, c.inCount = id, 0
	}
	c.inCount++
	if c.inCount == c.maxInbound+1 {
		c.log.Debug().Str("user_id", c.user.String()).Msg("inbound frame limit reached, dropping until next window")
	}
	return c.inCount <= c.maxInbound
}

// readPump handles client frames until the socket fails.
func (c *Conn) readPump(h *hub.Hub) {
	c.ws.SetReadLimit(maxInboundSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := c.ws.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		if !c.admit(time.Now()) {
			continue
		}
		switch in.Type {
		case "ping":
			h.Pong(c)
		case "chat":
			h.PostChat(c.user, in.Text)
		default:
			c.log.Debug().Str("type", in.Type).Msg("ignored inbound message")
		}
	}
}

// Server upgrades HTTP requests into hub connections.
type Server struct {
	hub      *hub.Hub
	cfg      Config
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewServer creates a Server feeding h.
func NewServer(h *hub.Hub, cfg Config, log zerolog.Logger) *Server {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	s := &Server{hub: h, cfg: cfg, log: log}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.cfg.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Serve upgrades the request for userID and blocks until the client leaves.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := NewConn(socket, userID, s.cfg, s.log)
	s.hub.Register(c)
	go c.writePump()
	c.readPump(s.hub)
	s.hub.Unregister(c)
	_ = c.Close()
	return nil
}
