package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/sanitize"
	"github.com/rs/zerolog/log"
)

type joinParams struct {
	room domain.RoomID
	nick string
	key  string
}

func parseJoin(req JoinRequest) joinParams {
	return joinParams{
		room: domain.RoomID(sanitize.String(req.Room, domain.MaxRoomIDLen)),
		nick: sanitize.String(req.Nick, domain.MaxNicknameLen),
		key:  sanitize.String(req.Key, domain.MaxSecretLen),
	}
}

// Join admits sid to a room, creating the room on first reference.
// A connection already in a room leaves it first.
func (o *Orchestrator) Join(sid domain.ConnID, req JoinRequest) error {
	p := parseJoin(req)
	sess := o.prepareJoin(sid)

	if p.room == "" || p.nick == "" {
		return o.rejectJoin(sid, p.room, domain.ErrBadParams)
	}

	m := domain.NewMember(sid, p.nick, p.room, sess.ClientToken)
	err := o.withRoom(p.room, func(room core.RoomService) error {
		return room.Join(m, p.key)
	})
	if err != nil {
		return o.rejectJoin(sid, p.room, err)
	}

	o.Registry.Bind(sid, p.room, p.nick)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(p.room)).Msg("joined")
	return nil
}

// Rejoin re-runs Join for a client that lost its previous connection prev.
// Under ReconnectMigrate a suspended prev from the same client hands its
// membership and pending acknowledgments over to sid.
func (o *Orchestrator) Rejoin(sid domain.ConnID, req RejoinRequest) error {
	prev := domain.ConnID(sanitize.String(req.Prev, domain.MaxMessageIDLen))
	p := parseJoin(req.JoinRequest)

	prevSess, ok := o.reclaimable(sid, prev)
	if !ok {
		return o.Join(sid, req.JoinRequest)
	}
	if o.Policy.Reconnect == app.ReconnectRejoin || prevSess.Room != p.room || p.nick == "" {
		o.Disconnect(prev)
		return o.Join(sid, req.JoinRequest)
	}

	sess := o.prepareJoin(sid)
	room, ok := o.Rooms.Get(p.room)
	if !ok {
		o.Disconnect(prev)
		return o.Join(sid, req.JoinRequest)
	}

	m := domain.NewMember(sid, p.nick, p.room, sess.ClientToken)
	err := room.Migrate(prev, m, p.key)
	switch {
	case errors.Is(err, domain.ErrNotJoined), errors.Is(err, core.ErrRoomClosed):
		o.Disconnect(prev)
		return o.Join(sid, req.JoinRequest)
	case err != nil:
		// prev stays suspended; its grace timer will disconnect it.
		return o.rejectJoin(sid, p.room, err)
	}

	o.Registry.Remove(prev)
	o.Registry.Bind(sid, p.room, p.nick)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("prev", string(prev)).Str("room", string(p.room)).Msg("migrated")
	return nil
}

// Suspend marks a joined connection whose transport dropped. It stays a
// member until Disconnect runs or a Rejoin reclaims it.
func (o *Orchestrator) Suspend(sid domain.ConnID) bool {
	sess, ok := o.Registry.Get(sid)
	if !ok || sess.State != domain.StateJoined {
		return false
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(sess.Room)).Msg("suspended")
	return o.Registry.SetState(sid, domain.StateDisconnected)
}

// Disconnect tears down sid: pending acknowledgments it owed are settled,
// peers learn it left, and an emptied room is deleted. Unknown sids are ignored.
func (o *Orchestrator) Disconnect(sid domain.ConnID) {
	sess, ok := o.Registry.Remove(sid)
	if !ok {
		return
	}
	if sess.Room != "" && (sess.State == domain.StateJoined || sess.State == domain.StateDisconnected) {
		o.leaveRoom(sid, sess.Room)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}

func (o *Orchestrator) prepareJoin(sid domain.ConnID) app.Session {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		o.Registry.Open(sid, "")
		sess, _ = o.Registry.Get(sid)
	}
	if sess.State == domain.StateJoined && sess.Room != "" {
		o.leaveRoom(sid, sess.Room)
		o.Registry.Unbind(sid)
	}
	o.Registry.SetState(sid, domain.StateJoining)
	return sess
}

func (o *Orchestrator) rejectJoin(sid domain.ConnID, room domain.RoomID, err error) error {
	o.Registry.Unbind(sid)
	if room != "" {
		o.Rooms.DeleteIfEmpty(room)
	}
	o.Emit.Emit(sid, domain.JoinError{
		Code:   domain.JoinErrorCode(err),
		Reason: o.joinReason(err),
	})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Err(err).Msg("join rejected")
	return err
}

func (o *Orchestrator) joinReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrBadParams):
		return "room and nickname are required"
	case errors.Is(err, domain.ErrRoomFull):
		return fmt.Sprintf("this room allows at most %d people", o.Policy.Capacity)
	case errors.Is(err, domain.ErrSecretMismatch):
		return "the room key does not match"
	case errors.Is(err, domain.ErrSecretNotAllowed):
		return "a key cannot be added to a room that already exists"
	default:
		return "could not join the room"
	}
}

func (o *Orchestrator) leaveRoom(sid domain.ConnID, id domain.RoomID) {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return
	}
	if m, _ := room.Leave(sid); m != nil {
		o.Rooms.DeleteIfEmpty(id)
	}
}

// reclaimable returns prev's session when sid may take it over.
func (o *Orchestrator) reclaimable(sid, prev domain.ConnID) (app.Session, bool) {
	if prev == "" || prev == sid {
		return app.Session{}, false
	}
	prevSess, ok := o.Registry.Get(prev)
	if !ok || prevSess.State != domain.StateDisconnected {
		return app.Session{}, false
	}
	cur, _ := o.Registry.Get(sid)
	if cur.ClientToken != prevSess.ClientToken {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("prev", string(prev)).Msg("rejoin from another client ignored")
		return app.Session{}, false
	}
	return prevSess, true
}
