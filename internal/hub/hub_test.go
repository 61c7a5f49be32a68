package hub

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	user   uuid.UUID
	mu     sync.Mutex
	got    []Message
	fail   bool
	closed bool
}

func newFakeConn(user uuid.UUID) *fakeConn {
	return &fakeConn{id: uuid.NewString(), user: user}
}

func (c *fakeConn) ID() string        { return c.id }
func (c *fakeConn) UserID() uuid.UUID { return c.user }

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("connection closed")
	}
	c.got = append(c.got, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.got))
	for i, m := range c.got {
		out[i] = m.Type
	}
	return out
}

func (c *fakeConn) last() Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.got[len(c.got)-1]
}

func TestRegister_ReplaysChat(t *testing.T) {
	h := New(DefaultConfig(), zerolog.Nop())
	_, ok := h.PostChat(uuid.New(), "hello")
	require.True(t, ok)

	c := newFakeConn(uuid.New())
	h.Register(c)
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, []string{MsgChatHistory}, c.types())

	history, ok := c.last().Data.([]ChatMessage)
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Text)
}

func TestBroadcast_Recipients(t *testing.T) {
	h := New(DefaultConfig(), zerolog.Nop())
	alice, bob := uuid.New(), uuid.New()
	a1, a2, b := newFakeConn(alice), newFakeConn(alice), newFakeConn(bob)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)

	assert.Equal(t, 2, h.NotifyUser(alice, "balance_update", 5))
	assert.Equal(t, 3, h.NotifyAll("rate_update", 10.1))
	assert.Equal(t, 1, h.Broadcast(Message{Type: "direct"}, To(b)))
	assert.Zero(t, h.NotifyUser(uuid.New(), "balance_update", 1))

	assert.Equal(t, []string{MsgChatHistory, "balance_update", "rate_update"}, a1.types())
	assert.Equal(t, []string{MsgChatHistory, "rate_update", "direct"}, b.types())
	assert.False(t, b.last().Timestamp.IsZero())
}

func TestBroadcast_FailedConnectionIsDropped(t *testing.T) {
	h := New(DefaultConfig(), zerolog.Nop())
	c1, c2, c3 := newFakeConn(uuid.New()), newFakeConn(uuid.New()), newFakeConn(uuid.New())
	h.Register(c1)
	h.Register(c2)
	h.Register(c3)

	c2.mu.Lock()
	c2.fail = true
	c2.mu.Unlock()

	assert.Equal(t, 2, h.NotifyAll("big_win", nil))
	assert.Equal(t, 2, h.Count())
	assert.True(t, c2.closed)

	assert.Equal(t, 2, h.NotifyAll("big_win", nil))
}

func TestUnregister_Idempotent(t *testing.T) {
	h := New(DefaultConfig(), zerolog.Nop())
	c := newFakeConn(uuid.New())
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)
	assert.Zero(t, h.Count())
	assert.True(t, c.closed)
}

func TestPostChat(t *testing.T) {
	h := New(Config{ChatHistory: 3, ChatReplay: 2, ChatMaxLength: 5}, zerolog.Nop())
	listener := newFakeConn(uuid.New())
	h.Register(listener)

	_, ok := h.PostChat(uuid.New(), "   ")
	assert.False(t, ok)

	msg, ok := h.PostChat(uuid.New(), "  héllo world ")
	require.True(t, ok)
	assert.Equal(t, "héllo", msg.Text)
	assert.Equal(t, MsgChatMessage, listener.last().Type)

	for _, s := range []string{"a", "b", "c"} {
		h.PostChat(uuid.New(), s)
	}
	history := h.ChatHistory(0)
	require.Len(t, history, 3)
	assert.Equal(t, "a", history[0].Text)
	assert.Equal(t, "c", history[2].Text)

	late := newFakeConn(uuid.New())
	h.Register(late)
	replay := late.last().Data.([]ChatMessage)
	require.Len(t, replay, 2)
	assert.Equal(t, "b", replay[0].Text)
}

func TestPostChat_RuneCap(t *testing.T) {
	h := New(DefaultConfig(), zerolog.Nop())
	msg, ok := h.PostChat(uuid.New(), strings.Repeat("🎰", 250))
	require.True(t, ok)
	assert.Equal(t, 200, len([]rune(msg.Text)))
}

func TestBroadcast_Concurrent(t *testing.T) {
	h := New(DefaultConfig(), zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newFakeConn(uuid.New())
			h.Register(c)
			h.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			h.NotifyAll("rate_update", 1)
		}()
	}
	wg.Wait()
	assert.Zero(t, h.Count())
}

func TestShutdown(t *testing.T) {
	h := New(DefaultConfig(), zerolog.Nop())
	c := newFakeConn(uuid.New())
	h.Register(c)
	h.Pong(c)
	assert.Equal(t, MsgPong, c.last().Type)

	h.Shutdown()
	assert.Zero(t, h.Count())
	assert.True(t, c.closed)
}
