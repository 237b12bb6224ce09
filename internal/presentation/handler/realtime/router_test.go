package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hilthontt/huddle/internal/application/chat"
	"github.com/hilthontt/huddle/internal/application/rooms"
	"github.com/hilthontt/huddle/internal/application/sessions"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/kv"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
	"github.com/hilthontt/huddle/internal/infrastructure/repository"
	"github.com/hilthontt/huddle/internal/infrastructure/ws"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id     string
	mu     sync.Mutex
	frames []ws.InboundMessage
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(frame []byte) bool {
	var m ws.InboundMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.frames = append(p.frames, m)
	p.mu.Unlock()
	return true
}

func (p *fakePeer) Close() {}

func (p *fakePeer) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, f.Event)
	}
	return out
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}

// last decodes the data of the latest frame carrying event.
func (p *fakePeer) last(t *testing.T, event string, v any) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.frames) - 1; i >= 0; i-- {
		if p.frames[i].Event == event {
			require.NoError(t, json.Unmarshal(p.frames[i].Data, v))
			return
		}
	}
	t.Fatalf("no %s frame for %s", event, p.id)
}

type recordingPublisher struct {
	mu      sync.Mutex
	joined  []string
	left    []string
	message []string
}

func (p *recordingPublisher) PublishRoomCreated(context.Context, domain.Room) error { return nil }

func (p *recordingPublisher) PublishMemberJoined(_ context.Context, _ domain.Room, m domain.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = append(p.joined, m.DisplayName)
	return nil
}

func (p *recordingPublisher) PublishMemberLeft(_ context.Context, _ domain.Room, m domain.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left = append(p.left, m.DisplayName)
	return nil
}

func (p *recordingPublisher) PublishMessageSent(_ context.Context, m domain.ChatMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message = append(p.message, m.Message)
	return errors.New("broker down")
}

type harness struct {
	t         *testing.T
	router    *Router
	hub       *ws.Hub
	dir       *rooms.Directory
	registry  *sessions.Registry
	metrics   *metrics.Metrics
	publisher *recordingPublisher
	peers     map[string]*fakePeer
}

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	store := kv.NewMemory()
	t.Cleanup(func() { _ = store.Close() })

	dir := rooms.NewDirectory(repository.NewRoomRepository(store, time.Hour))
	chatSvc := chat.NewService(dir, repository.NewMessageRepository(store, domain.MaxHistoryEntries, time.Hour), 0)
	return newHarnessWith(t, dir, dir, chatSvc, opts...)
}

func newHarnessWith(t *testing.T, dir *rooms.Directory, directory roomDirectory, sender chatSender, opts ...Option) *harness {
	t.Helper()

	logger := logging.NewNopLogger()
	m := metrics.New()
	pub := &recordingPublisher{}
	hub := ws.NewHub(logger, m)
	registry := sessions.NewRegistry()

	opts = append([]Option{WithMetrics(m), WithPublisher(pub), WithClock(func() time.Time { return fixedNow })}, opts...)

	return &harness{
		t:         t,
		router:    NewRouter(directory, sender, registry, hub, logger, opts...),
		hub:       hub,
		dir:       dir,
		registry:  registry,
		metrics:   m,
		publisher: pub,
		peers:     make(map[string]*fakePeer),
	}
}

func (h *harness) connect(id string) *fakePeer {
	p := &fakePeer{id: id}
	h.hub.Register(p)
	h.peers[id] = p
	return p
}

func (h *harness) send(connID, event string, data any) {
	h.t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(h.t, err)
	frame, err := json.Marshal(ws.InboundMessage{Event: event, Data: raw})
	require.NoError(h.t, err)

	h.router.HandleMessage(context.Background(), connID, frame)
}

func (h *harness) disconnect(connID string) {
	h.router.HandleDisconnect(context.Background(), connID)
	h.hub.Unregister(connID)
}

func (h *harness) createRoom() *domain.Room {
	h.t.Helper()
	room, err := h.dir.CreateRoom(context.Background(), "")
	require.NoError(h.t, err)
	return room
}

func (h *harness) room(id string) *domain.Room {
	h.t.Helper()
	room, err := h.dir.GetRoom(context.Background(), id)
	require.NoError(h.t, err)
	return room
}

func join(roomID, name string) map[string]any {
	return map[string]any{"roomId": roomID, "displayName": name}
}

func TestJoinToggleDisconnectScenario(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1, c2 := h.connect("C1"), h.connect("C2")

	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	assert.Equal(t, []string{ws.JoinedRoom, ws.UsersList}, c1.events())

	var joined ws.JoinedRoomPayload
	c1.last(t, ws.JoinedRoom, &joined)
	require.Len(t, joined.Room.Members, 1)
	alice := joined.Member
	assert.Equal(t, "Alice", alice.DisplayName)
	assert.Equal(t, "C1", alice.ConnectionID)
	assert.True(t, alice.IsVideoOn)
	assert.True(t, alice.IsAudioOn)
	assert.False(t, alice.IsHandRaised)

	h.send("C2", ws.JoinRoom, join(r1.ID, "Bob"))
	assert.Equal(t, []string{ws.JoinedRoom, ws.UsersList}, c2.events())
	c2.last(t, ws.JoinedRoom, &joined)
	assert.Len(t, joined.Room.Members, 2)
	bob := joined.Member

	var list ws.UsersListPayload
	c2.last(t, ws.UsersList, &list)
	require.Len(t, list.Members, 2)
	assert.Equal(t, "Alice", list.Members[0].DisplayName)
	assert.Equal(t, "Bob", list.Members[1].DisplayName)

	var userJoined ws.UserJoinedPayload
	c1.last(t, ws.UserJoined, &userJoined)
	assert.Equal(t, bob.ID, userJoined.Member.ID)

	c1.reset()
	c2.reset()
	h.send("C1", ws.ToggleVideo, map[string]any{"roomId": r1.ID, "isVideoOn": false})

	for _, p := range []*fakePeer{c1, c2} {
		var toggled ws.VideoToggledPayload
		p.last(t, ws.UserVideoToggled, &toggled)
		assert.Equal(t, alice.ID, toggled.MemberID)
		assert.False(t, toggled.IsVideoOn)
	}

	c1.reset()
	h.disconnect("C2")

	assert.Equal(t, []string{ws.UserLeft}, c1.events())
	var left ws.UserLeftPayload
	c1.last(t, ws.UserLeft, &left)
	assert.Equal(t, bob.ID, left.MemberID)
	require.Len(t, left.Room.Members, 1)

	room := h.room(r1.ID)
	require.Len(t, room.Members, 1)
	assert.Equal(t, alice.ID, room.Members[0].ID)
	assert.False(t, room.Members[0].IsVideoOn)

	assert.Equal(t, []string{"Alice", "Bob"}, h.publisher.joined)
	assert.Equal(t, []string{"Bob"}, h.publisher.left)
}

func TestJoinUnknownRoom(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1, c2 := h.connect("C1"), h.connect("C2")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	c1.reset()

	h.send("C2", ws.JoinRoom, join("no-such-room", "Bob"))

	assert.Equal(t, []string{ws.ErrorEvent}, c2.events())
	var payload ws.ErrorPayload
	c2.last(t, ws.ErrorEvent, &payload)
	assert.Equal(t, "Room not found", payload.Message)
	assert.Empty(t, c1.events())

	_, bound := h.registry.Lookup("C2")
	assert.False(t, bound)
	_, subscribed := h.hub.RoomOf("C2")
	assert.False(t, subscribed)
}

func TestJoinWithoutRoomID(t *testing.T) {
	h := newHarness(t)
	c1 := h.connect("C1")

	h.send("C1", ws.JoinRoom, map[string]any{"displayName": "Alice"})
	assert.Equal(t, []string{ws.ErrorEvent}, c1.events())
}

func TestRejoinNeverDuplicatesMember(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	h.connect("C1")
	h.connect("C2")

	h.send("C2", ws.JoinRoom, join(r1.ID, "Bob"))
	for i := 0; i < 5; i++ {
		h.send("C1", ws.JoinRoom, join(r1.ID, fmt.Sprintf("Alice %d", i)))
	}

	room := h.room(r1.ID)
	require.Len(t, room.Members, 2)
	assert.Equal(t, "Bob", room.Members[0].DisplayName)
	assert.Equal(t, "Alice 4", room.Members[1].DisplayName)
}

func TestSwitchingRoomsLeavesPrevious(t *testing.T) {
	h := newHarness(t)
	r1, r2 := h.createRoom(), h.createRoom()
	c1 := h.connect("C1")
	c2 := h.connect("C2")

	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	h.send("C2", ws.JoinRoom, join(r1.ID, "Bob"))
	c1.reset()

	h.send("C2", ws.JoinRoom, join(r2.ID, "Bob"))

	assert.Equal(t, []string{ws.UserLeft}, c1.events())
	assert.Len(t, h.room(r1.ID).Members, 1)
	assert.Len(t, h.room(r2.ID).Members, 1)

	roomID, ok := h.hub.RoomOf("C2")
	require.True(t, ok)
	assert.Equal(t, r2.ID, roomID)
	assert.Contains(t, c2.events(), ws.JoinedRoom)
}

func TestToggleWithoutFlagIsDropped(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1 := h.connect("C1")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	c1.reset()

	h.send("C1", ws.ToggleAudio, map[string]any{"roomId": r1.ID})
	h.send("C1", ws.RaiseHand, map[string]any{"roomId": r1.ID})

	assert.Empty(t, c1.events())
	room := h.room(r1.ID)
	assert.True(t, room.Members[0].IsAudioOn)
	assert.False(t, room.Members[0].IsHandRaised)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.InboundEvents.WithLabelValues(ws.ToggleAudio, "dropped")))
}

func TestToggleFromOutsiderIsDropped(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1 := h.connect("C1")
	h.connect("C2")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	c1.reset()

	h.send("C2", ws.ToggleVideo, map[string]any{"roomId": r1.ID, "isVideoOn": false})

	assert.Empty(t, c1.events())
	assert.True(t, h.room(r1.ID).Members[0].IsVideoOn)
}

func TestRaiseHandAndAudio(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1 := h.connect("C1")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))

	h.send("C1", ws.RaiseHand, map[string]any{"roomId": r1.ID, "isHandRaised": true})
	h.send("C1", ws.ToggleAudio, map[string]any{"roomId": r1.ID, "isAudioOn": false})

	var hand ws.HandRaisedPayload
	c1.last(t, ws.UserHandRaised, &hand)
	assert.True(t, hand.IsHandRaised)

	var audio ws.AudioToggledPayload
	c1.last(t, ws.UserAudioToggled, &audio)
	assert.False(t, audio.IsAudioOn)

	m := h.room(r1.ID).Members[0]
	assert.True(t, m.IsHandRaised)
	assert.False(t, m.IsAudioOn)
	assert.True(t, m.IsVideoOn)
}

func TestReactionReachesWholeRoom(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1, c2 := h.connect("C1"), h.connect("C2")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	h.send("C2", ws.JoinRoom, join(r1.ID, "Bob"))

	h.send("C1", ws.SendReaction, map[string]any{"roomId": r1.ID, "emoji": "🎉"})

	for _, p := range []*fakePeer{c1, c2} {
		var reaction ws.ReactionPayload
		p.last(t, ws.UserReaction, &reaction)
		assert.Equal(t, "Alice", reaction.DisplayName)
		assert.Equal(t, "🎉", reaction.Emoji)
		assert.Equal(t, fixedNow.Format(time.RFC3339Nano), reaction.Timestamp)
	}

	assert.Nil(t, h.room(r1.ID).Members[0].LastReaction)
}

func TestChatMessage(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1, c2 := h.connect("C1"), h.connect("C2")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	h.send("C2", ws.JoinRoom, join(r1.ID, "Bob"))

	var joined ws.JoinedRoomPayload
	c1.last(t, ws.JoinedRoom, &joined)
	alice := joined.Member
	c1.reset()
	c2.reset()

	msg := domain.ChatMessage{
		ID:        "m1",
		RoomID:    r1.ID,
		UserID:    alice.ID,
		UserName:  "Alice",
		Message:   "hi all",
		Timestamp: "2024-05-01T09:30:00Z",
	}
	h.send("C1", ws.ChatMessage, msg)

	assert.Empty(t, c1.events())
	var got domain.ChatMessage
	c2.last(t, ws.ChatMessage, &got)
	assert.Equal(t, msg, got)

	c2.reset()
	h.send("C2", ws.ChatMessage, msg)
	assert.Empty(t, c1.events())
	assert.Empty(t, c2.events())

	assert.Equal(t, []string{"hi all"}, h.publisher.message)
}

func TestSignalingRelay(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1, c2, c3 := h.connect("C1"), h.connect("C2"), h.connect("C3")
	for id, name := range map[string]string{"C1": "Alice", "C2": "Bob", "C3": "Carol"} {
		h.send(id, ws.JoinRoom, join(r1.ID, name))
	}
	before := h.room(r1.ID)
	c1.reset()
	c2.reset()
	c3.reset()

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	h.send("C1", ws.Offer, map[string]any{"roomId": r1.ID, "targetUserId": "member-bob", "payload": payload})

	assert.Empty(t, c1.events())
	for _, p := range []*fakePeer{c2, c3} {
		var body struct {
			Payload          json.RawMessage `json:"payload"`
			FromConnectionID string          `json:"fromConnectionId"`
			TargetMemberID   string          `json:"targetMemberId"`
		}
		p.last(t, ws.Offer, &body)
		assert.JSONEq(t, string(payload), string(body.Payload))
		assert.Equal(t, "C1", body.FromConnectionID)
		assert.Equal(t, "member-bob", body.TargetMemberID)
	}

	h.send("C2", ws.Answer, map[string]any{"roomId": r1.ID, "targetUserId": "x", "payload": map[string]any{}})
	h.send("C2", ws.ICECandidate, map[string]any{"roomId": r1.ID, "targetUserId": "x", "payload": map[string]any{"candidate": "a"}})
	assert.Equal(t, []string{ws.Answer, ws.ICECandidate}, c1.events())

	assert.Equal(t, before, h.room(r1.ID))
}

func TestDisconnectFallsBackToScan(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1 := h.connect("C1")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	c1.reset()

	_, err := h.dir.AddOrReplaceMember(context.Background(), r1.ID, domain.NewMember("C9", "Ghost"))
	require.NoError(t, err)
	h.registry.Bind("C9", sessions.Binding{RoomID: "expired-room", MemberID: "m"})

	h.disconnect("C9")

	assert.Equal(t, []string{ws.UserLeft}, c1.events())
	assert.Len(t, h.room(r1.ID).Members, 1)
}

func TestDisconnectWithoutMembership(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()
	c1 := h.connect("C1")
	h.connect("C2")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	c1.reset()

	h.disconnect("C2")

	assert.Empty(t, c1.events())
	assert.Len(t, h.room(r1.ID).Members, 1)
}

func TestConcurrentJoinsAreAllRecorded(t *testing.T) {
	h := newHarness(t)
	r1 := h.createRoom()

	const n = 25
	for i := 0; i < n; i++ {
		h.connect(fmt.Sprintf("C%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.router.HandleMessage(context.Background(), fmt.Sprintf("C%d", i),
				[]byte(fmt.Sprintf(`{"event":"join-room","data":{"roomId":%q,"displayName":"u%d"}}`, r1.ID, i)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, h.room(r1.ID).Members, n)

	// each connection learns about every member, from its list or a later user-joined
	for i := 0; i < n; i++ {
		p := h.peers[fmt.Sprintf("C%d", i)]
		seen := make(map[string]bool)

		var list ws.UsersListPayload
		p.last(t, ws.UsersList, &list)
		for _, m := range list.Members {
			seen[m.ConnectionID] = true
		}

		p.mu.Lock()
		for _, f := range p.frames {
			if f.Event != ws.UserJoined {
				continue
			}
			var joined ws.UserJoinedPayload
			require.NoError(t, json.Unmarshal(f.Data, &joined))
			seen[joined.Member.ConnectionID] = true
		}
		p.mu.Unlock()

		assert.Len(t, seen, n, p.id)
	}
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	h := newHarness(t)
	h.connect("C1")

	h.router.HandleMessage(context.Background(), "C1", []byte(`not json`))
	h.router.HandleMessage(context.Background(), "C1", []byte(`{"event":"teleport","data":{}}`))

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.InboundEvents.WithLabelValues("malformed", "dropped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.InboundEvents.WithLabelValues("unknown", "dropped")))
}

type panickingChat struct{}

func (panickingChat) SendMessage(context.Context, domain.ChatMessage, string) (*domain.ChatMessage, error) {
	panic("boom")
}

func TestHandlerPanicIsContained(t *testing.T) {
	store := kv.NewMemory()
	t.Cleanup(func() { _ = store.Close() })
	dir := rooms.NewDirectory(repository.NewRoomRepository(store, time.Hour))

	h := newHarnessWith(t, dir, dir, panickingChat{})
	h.connect("C1")

	assert.NotPanics(t, func() {
		h.send("C1", ws.ChatMessage, map[string]any{"roomId": "r", "userId": "u", "message": "hi"})
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.InboundEvents.WithLabelValues(ws.ChatMessage, "error")))
}

type stubDirectory struct {
	*rooms.Directory
	failJoins atomic.Bool
	scans     atomic.Int32
}

func newStubDirectory(t *testing.T) *stubDirectory {
	t.Helper()
	store := kv.NewMemory()
	t.Cleanup(func() { _ = store.Close() })
	return &stubDirectory{Directory: rooms.NewDirectory(repository.NewRoomRepository(store, time.Hour))}
}

func (d *stubDirectory) AddOrReplaceMember(ctx context.Context, roomID string, member domain.Member) (*domain.Room, error) {
	if d.failJoins.Load() {
		return nil, errors.New("store unavailable")
	}
	return d.Directory.AddOrReplaceMember(ctx, roomID, member)
}

func (d *stubDirectory) FindMemberAcrossAllRooms(ctx context.Context, connID string) (*domain.Room, domain.Member, error) {
	d.scans.Add(1)
	return d.Directory.FindMemberAcrossAllRooms(ctx, connID)
}

func TestJoinStoreFailure(t *testing.T) {
	dir := newStubDirectory(t)
	dir.failJoins.Store(true)

	h := newHarnessWith(t, dir.Directory, dir, nil)
	r1 := h.createRoom()
	c1 := h.connect("C1")

	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))

	assert.Equal(t, []string{ws.ErrorEvent}, c1.events())
	var payload ws.ErrorPayload
	c1.last(t, ws.ErrorEvent, &payload)
	assert.Equal(t, "Failed to join room", payload.Message)

	_, subscribed := h.hub.RoomOf("C1")
	assert.False(t, subscribed)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.InboundEvents.WithLabelValues(ws.JoinRoom, "error")))
}

func TestFailedRejoinKeepsSubscription(t *testing.T) {
	dir := newStubDirectory(t)
	h := newHarnessWith(t, dir.Directory, dir, nil)
	r1 := h.createRoom()
	c1 := h.connect("C1")
	h.connect("C2")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	h.send("C2", ws.JoinRoom, join(r1.ID, "Bob"))
	c1.reset()

	dir.failJoins.Store(true)
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))
	dir.failJoins.Store(false)

	assert.Equal(t, []string{ws.ErrorEvent}, c1.events())
	roomID, subscribed := h.hub.RoomOf("C1")
	assert.True(t, subscribed)
	assert.Equal(t, r1.ID, roomID)
	_, bound := h.registry.Lookup("C1")
	assert.True(t, bound)
	assert.Len(t, h.room(r1.ID).Members, 2)

	c1.reset()
	h.send("C2", ws.ToggleVideo, map[string]any{"roomId": r1.ID, "isVideoOn": false})
	assert.Equal(t, []string{ws.UserVideoToggled}, c1.events())
}

func TestDisconnectUnboundSkipsScan(t *testing.T) {
	dir := newStubDirectory(t)
	h := newHarnessWith(t, dir.Directory, dir, nil)
	r1 := h.createRoom()
	h.connect("C1")
	h.connect("C2")
	h.send("C1", ws.JoinRoom, join(r1.ID, "Alice"))

	h.disconnect("C2")
	assert.Equal(t, int32(0), dir.scans.Load())

	h.disconnect("C1")
	assert.Equal(t, int32(0), dir.scans.Load())
	assert.Empty(t, h.room(r1.ID).Members)
}
