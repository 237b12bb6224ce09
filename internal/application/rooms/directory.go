// Package rooms is the single writer of room records. Every read-modify-write
// on a room runs under that room's lock, so concurrent events on one room
// apply one after another while different rooms proceed in parallel.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
	"github.com/hilthontt/huddle/internal/infrastructure/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Directory struct {
	repo    domain.RoomRepository
	locks   *keyedMutex
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

type Option func(*Directory)

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Directory) {
		d.metrics = m
	}
}

func NewDirectory(repo domain.RoomRepository, opts ...Option) *Directory {
	d := &Directory{
		repo:   repo,
		locks:  newKeyedMutex(),
		tracer: tracing.GetTracer("huddle/rooms"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Directory) startSpan(ctx context.Context, name, roomID string) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, "rooms."+name, trace.WithAttributes(attribute.String("room.id", roomID)))
}

func endSpan(span trace.Span, err error) {
	if !errors.Is(err, domain.ErrRoomNotFound) && !errors.Is(err, domain.ErrMemberNotFound) {
		tracing.Fail(span, err)
	}
	span.End()
}

// mutate loads the room, hands it to fn and saves it if fn succeeds, all
// under the room's lock.
func (d *Directory) mutate(ctx context.Context, op, roomID string, fn func(room *domain.Room) error) (*domain.Room, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	if d.metrics != nil {
		start := time.Now()
		defer func() {
			d.metrics.RoomMutation.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}()
	}

	room, err := d.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err := fn(room); err != nil {
		return nil, err
	}

	if err := d.repo.Save(ctx, room); err != nil {
		return nil, err
	}

	return room, nil
}

func (d *Directory) CreateRoom(ctx context.Context, name string) (_ *domain.Room, err error) {
	room := domain.NewRoom(name)

	ctx, span := d.startSpan(ctx, "CreateRoom", room.ID)
	defer func() { endSpan(span, err) }()

	if err := d.repo.Save(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	return room, nil
}

// GetRoom returns domain.ErrRoomNotFound for unknown or expired rooms.
func (d *Directory) GetRoom(ctx context.Context, roomID string) (_ *domain.Room, err error) {
	ctx, span := d.startSpan(ctx, "GetRoom", roomID)
	defer func() { endSpan(span, err) }()

	return d.repo.GetByID(ctx, roomID)
}

func (d *Directory) RoomExists(ctx context.Context, roomID string) (_ bool, err error) {
	ctx, span := d.startSpan(ctx, "RoomExists", roomID)
	defer func() { endSpan(span, err) }()

	return d.repo.Exists(ctx, roomID)
}

// AddOrReplaceMember replaces the member bound to the same connection in
// place or appends a new slot.
func (d *Directory) AddOrReplaceMember(ctx context.Context, roomID string, member domain.Member) (_ *domain.Room, err error) {
	ctx, span := d.startSpan(ctx, "AddOrReplaceMember", roomID)
	defer func() { endSpan(span, err) }()

	return d.mutate(ctx, "add_member", roomID, func(room *domain.Room) error {
		room.UpsertMember(member)
		return nil
	})
}

// RemoveMember returns domain.ErrRoomNotFound or domain.ErrMemberNotFound
// when there is nothing to remove; the room is not written in either case.
func (d *Directory) RemoveMember(ctx context.Context, roomID, connectionID string) (_ *domain.Room, _ domain.Member, err error) {
	ctx, span := d.startSpan(ctx, "RemoveMember", roomID)
	defer func() { endSpan(span, err) }()

	var removed domain.Member
	room, err := d.mutate(ctx, "remove_member", roomID, func(room *domain.Room) error {
		m, ok := room.RemoveMember(connectionID)
		if !ok {
			return domain.ErrMemberNotFound
		}
		removed = m
		return nil
	})
	if err != nil {
		return nil, domain.Member{}, err
	}

	return room, removed, nil
}

// UpdateMember merges only the non-nil fields of update into the member.
func (d *Directory) UpdateMember(ctx context.Context, roomID, connectionID string, update domain.MemberUpdate) (_ *domain.Room, _ domain.Member, err error) {
	ctx, span := d.startSpan(ctx, "UpdateMember", roomID)
	defer func() { endSpan(span, err) }()

	if update.IsEmpty() {
		return nil, domain.Member{}, domain.ErrInvalidInput
	}

	var updated domain.Member
	room, err := d.mutate(ctx, "update_member", roomID, func(room *domain.Room) error {
		m, ok := room.UpdateMember(connectionID, update)
		if !ok {
			return domain.ErrMemberNotFound
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, domain.Member{}, err
	}

	return room, updated, nil
}

func (d *Directory) GetMember(ctx context.Context, roomID, connectionID string) (_ domain.Member, err error) {
	ctx, span := d.startSpan(ctx, "GetMember", roomID)
	defer func() { endSpan(span, err) }()

	room, err := d.repo.GetByID(ctx, roomID)
	if err != nil {
		return domain.Member{}, err
	}

	m, ok := room.FindMemberByConnection(connectionID)
	if !ok {
		return domain.Member{}, domain.ErrMemberNotFound
	}
	return m, nil
}

// FindMemberAcrossAllRooms scans every stored room for the connection. It costs
// one read per room and only serves disconnects the session registry missed.
func (d *Directory) FindMemberAcrossAllRooms(ctx context.Context, connectionID string) (_ *domain.Room, _ domain.Member, err error) {
	ctx, span := d.tracer.Start(ctx, "rooms.FindMemberAcrossAllRooms")
	defer func() { endSpan(span, err) }()

	ids, err := d.repo.ListIDs(ctx)
	if err != nil {
		return nil, domain.Member{}, err
	}
	span.SetAttributes(attribute.Int("rooms.scanned", len(ids)))

	for _, id := range ids {
		room, err := d.repo.GetByID(ctx, id)
		if err != nil {
			// expired between the listing and the read, or unreadable
			continue
		}
		if m, ok := room.FindMemberByConnection(connectionID); ok {
			return room, m, nil
		}
	}

	return nil, domain.Member{}, domain.ErrMemberNotFound
}
