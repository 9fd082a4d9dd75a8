package orch

import (
	"errors"
	"time"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs the per-connection protocols against the room registry.
// Events from one connection must be delivered sequentially; events from
// different connections may arrive concurrently.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Emit     core.Emitter
}

// New wires an orchestrator with its own room manager. now may be nil.
func New(policy app.Policy, emit core.Emitter, now func() time.Time) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(policy.RoomOptions(now), emit),
		Policy:   policy,
		Emit:     emit,
	}
}

// Connect records a new connection in the Unjoined state.
func (o *Orchestrator) Connect(sid domain.ConnID, clientToken string) {
	o.Registry.Open(sid, clientToken)
}

type Stats struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"sessions"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{Rooms: len(o.Rooms.List()), Sessions: o.Registry.Count()}
}

// RoomStatus reports a room's occupancy without creating it.
func (o *Orchestrator) RoomStatus(id domain.RoomID) (core.RoomInfo, bool) {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return core.RoomInfo{ID: id, Capacity: o.Policy.Capacity}, false
	}
	return room.Snapshot(), true
}

// withRoom runs fn against the live room for id, retrying when it races a
// deletion.
func (o *Orchestrator) withRoom(id domain.RoomID, fn func(core.RoomService) error) error {
	for {
		err := fn(o.Rooms.GetOrCreate(id))
		if !errors.Is(err, core.ErrRoomClosed) {
			return err
		}
		log.Debug().Str("module", "orch").Str("room", string(id)).Msg("room closed under us, retrying")
	}
}

// joinedRoom returns the room sid is joined to, provided it is the one named.
func (o *Orchestrator) joinedRoom(sid domain.ConnID, id domain.RoomID) (core.RoomService, error) {
	current, ok := o.Registry.RoomOf(sid)
	if !ok || current != id {
		return nil, domain.ErrNotJoined
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		return nil, domain.ErrUnknownRoom
	}
	return room, nil
}

func (o *Orchestrator) info(sid domain.ConnID, text string) {
	o.Emit.Emit(sid, domain.Info{Text: text})
}
