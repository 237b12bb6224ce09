package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full {
		return false
	}
	p.frames = append(p.frames, frame)
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakePeer) events(t *testing.T) []string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.frames))
	for _, f := range p.frames {
		var m InboundMessage
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m.Event)
	}
	return out
}

func newTestHub() (*Hub, *metrics.Metrics) {
	m := metrics.New()
	return NewHub(logging.NewNopLogger(), m), m
}

func TestBroadcastExcludesSender(t *testing.T) {
	h, _ := newTestHub()
	a, b, c := &fakePeer{id: "a"}, &fakePeer{id: "b"}, &fakePeer{id: "c"}
	for _, p := range []*fakePeer{a, b, c} {
		h.Register(p)
	}
	require.True(t, h.Join("r1", "a"))
	require.True(t, h.Join("r1", "b"))
	require.True(t, h.Join("r2", "c"))

	n := h.Broadcast("r1", NewError("x"), "a")
	assert.Equal(t, 1, n)
	assert.Empty(t, a.events(t))
	assert.Equal(t, []string{ErrorEvent}, b.events(t))
	assert.Empty(t, c.events(t))

	n = h.Broadcast("r1", NewError("y"), "")
	assert.Equal(t, 2, n)
}

func TestJoinMovesBetweenGroups(t *testing.T) {
	h, _ := newTestHub()
	a := &fakePeer{id: "a"}
	h.Register(a)

	assert.False(t, h.Join("r1", "ghost"))

	h.Join("r1", "a")
	h.Join("r2", "a")

	roomID, ok := h.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, "r2", roomID)
	assert.Equal(t, 0, h.Broadcast("r1", NewError("x"), ""))
	assert.Equal(t, 1, h.Broadcast("r2", NewError("x"), ""))
}

func TestSendToAndUnregister(t *testing.T) {
	h, m := newTestHub()
	a := &fakePeer{id: "a"}
	h.Register(a)
	h.Register(a)
	h.Join("r1", "a")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveConnections))

	assert.True(t, h.SendTo("a", NewError("private")))
	assert.False(t, h.SendTo("b", NewError("private")))

	h.Unregister("a")
	h.Unregister("a")
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveConnections))
	_, ok := h.RoomOf("a")
	assert.False(t, ok)
	assert.Equal(t, 0, h.Broadcast("r1", NewError("x"), ""))
}

func TestFullBufferDropsFrame(t *testing.T) {
	h, m := newTestHub()
	slow := &fakePeer{id: "slow", full: true}
	fast := &fakePeer{id: "fast"}
	h.Register(slow)
	h.Register(fast)
	h.Join("r", "slow")
	h.Join("r", "fast")

	assert.Equal(t, 1, h.Broadcast("r", NewError("x"), ""))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DroppedFrames))
	assert.Len(t, fast.events(t), 1)
}

func TestCloseAll(t *testing.T) {
	h, _ := newTestHub()
	a, b := &fakePeer{id: "a"}, &fakePeer{id: "b"}
	h.Register(a)
	h.Register(b)

	h.CloseAll()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestDrain(t *testing.T) {
	h, _ := newTestHub()
	h.Register(&fakePeer{id: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Drain(ctx), context.DeadlineExceeded)

	go h.Unregister("a")
	assert.NoError(t, h.Drain(context.Background()))
}
