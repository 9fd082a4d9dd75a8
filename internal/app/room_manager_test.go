package app

import (
	"sync"
	"testing"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() core.Emitter {
	return core.EmitterFunc(func(domain.ConnID, domain.Event) {})
}

func TestRoomManager_GetOrCreate(t *testing.T) {
	m := NewRoomManager(DefaultPolicy().RoomOptions(nil), discard())

	a := m.GetOrCreate("a")
	assert.Same(t, a, m.GetOrCreate("a"))
	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = m.Get("b")
	assert.False(t, ok)
	assert.Len(t, m.List(), 1)
}

func TestRoomManager_DeleteIfEmpty(t *testing.T) {
	m := NewRoomManager(DefaultPolicy().RoomOptions(nil), discard())
	room := m.GetOrCreate("a")
	require.NoError(t, room.Join(domain.NewMember("x", "X", "a", ""), ""))

	assert.False(t, m.DeleteIfEmpty("a"))
	room.Leave("x")
	assert.True(t, m.DeleteIfEmpty("a"))
	assert.False(t, m.DeleteIfEmpty("a"))

	assert.ErrorIs(t, room.Join(domain.NewMember("y", "Y", "a", ""), ""), core.ErrRoomClosed)
	assert.NotSame(t, room, m.GetOrCreate("a"))
}

func TestRoomManager_ConcurrentGetOrCreate(t *testing.T) {
	m := NewRoomManager(DefaultPolicy().RoomOptions(nil), discard())

	rooms := make([]core.RoomService, 32)
	var wg sync.WaitGroup
	for i := range rooms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rooms[i] = m.GetOrCreate("shared")
		}()
	}
	wg.Wait()

	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
}

func TestRoomManager_List(t *testing.T) {
	m := NewRoomManager(DefaultPolicy().RoomOptions(nil), discard())
	room := m.GetOrCreate("a")
	require.NoError(t, room.Join(domain.NewMember("x", "X", "a", ""), "pw"))

	assert.Equal(t, []core.RoomInfo{{ID: "a", MemberCount: 1, Capacity: 2, Secured: true}}, m.List())
}
