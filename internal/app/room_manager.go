package app

import (
	"sync"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomManagerImpl struct {
	opts core.RoomOptions
	emit core.Emitter

	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager(opts core.RoomOptions, emit core.Emitter) core.RoomManager {
	return &RoomManagerImpl{
		opts:  opts,
		emit:  emit,
		rooms: make(map[domain.RoomID]core.RoomService),
	}
}

func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(id, f.opts, f.emit)
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// DeleteIfEmpty drops the room once its last member is gone. Lock order is
// manager, then room.
func (f *RoomManagerImpl) DeleteIfEmpty(id domain.RoomID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok || !room.CloseIfEmpty() {
		return false
	}
	delete(f.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
	return true
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r.Snapshot())
	}
	return out
}
