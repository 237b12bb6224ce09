package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/kv"
)

const DefaultRetention = 24 * time.Hour

type roomRepository struct {
	store     kv.Store
	retention time.Duration
}

func NewRoomRepository(store kv.Store, retention time.Duration) domain.RoomRepository {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &roomRepository{
		store:     store,
		retention: retention,
	}
}

func (r *roomRepository) Save(ctx context.Context, room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}
	if room.Members == nil {
		room.Members = []domain.Member{}
	}

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", room.ID, err)
	}

	if err := r.store.Set(ctx, roomKey(room.ID), data, r.retention); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}

	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	data, err := r.store.Get(ctx, roomKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}

	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", id, err)
	}
	if room.Members == nil {
		room.Members = []domain.Member{}
	}

	return &room, nil
}

func (r *roomRepository) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	ok, err := r.store.Exists(ctx, roomKey(id))
	if err != nil {
		return false, fmt.Errorf("room %s exists: %w", id, err)
	}
	return ok, nil
}

func (r *roomRepository) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, roomKeyScanPattern)
	if err != nil {
		return nil, fmt.Errorf("list room keys: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if isMessagesKey(key) {
			continue
		}
		ids = append(ids, strings.TrimPrefix(key, roomKeyPrefix))
	}

	return ids, nil
}
