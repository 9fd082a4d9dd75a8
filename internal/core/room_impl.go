package core

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

type ackSet map[domain.ConnID]struct{}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id   domain.RoomID
	opts RoomOptions
	emit Emitter

	mu      sync.Mutex
	closed  bool
	secret  string
	bySID   map[domain.ConnID]*domain.Member
	order   []domain.ConnID
	sends   map[SendKind]*throttle
	pending map[domain.MessageID]ackSet
	// settled holds ids whose pending set drained; they are never tracked again.
	settled map[domain.MessageID]struct{}
}

func NewRoomService(id domain.RoomID, opts RoomOptions, emit Emitter) RoomService {
	r := &roomImpl{
		id:    id,
		opts:  opts,
		emit:  emit,
		bySID: make(map[domain.ConnID]*domain.Member),
	}
	r.resetLocked()
	return r
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySID)
}

func (r *roomImpl) Secured() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.secret != ""
}

func (r *roomImpl) Snapshot() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		ID:          r.id,
		MemberCount: len(r.bySID),
		Capacity:    r.opts.Capacity,
		Secured:     r.secret != "",
	}
}

func (r *roomImpl) Join(m *domain.Member, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if _, ok := r.bySID[m.ID]; ok {
		return nil
	}
	if r.opts.Capacity > 0 && len(r.bySID) >= r.opts.Capacity {
		return domain.ErrRoomFull
	}

	if len(r.bySID) == 0 {
		// An empty room is a new room, whatever it held before.
		r.resetLocked()
		r.secret = secret
	} else if err := r.checkSecretLocked(secret); err != nil {
		return err
	}

	r.bySID[m.ID] = m
	r.order = append(r.order, m.ID)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(m.ID)).Int("members", len(r.bySID)).Msg("member added")

	r.emit.Emit(m.ID, domain.Joined{
		Msg:     joinedMessage(m.Nick, r.id, r.secret != ""),
		SID:     m.ID,
		Secured: r.secret != "",
	})
	r.broadcastLocked(m.ID, domain.PeerJoined{Nick: m.DisplayNick()})
	return nil
}

// Migrate hands prev's membership and pending acknowledgments to m without
// notifying the other members.
func (r *roomImpl) Migrate(prev domain.ConnID, m *domain.Member, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if _, ok := r.bySID[prev]; !ok {
		return domain.ErrNotJoined
	}
	if err := r.checkSecretLocked(secret); err != nil {
		return err
	}

	delete(r.bySID, prev)
	r.bySID[m.ID] = m
	r.order[slices.Index(r.order, prev)] = m.ID

	moved := 0
	for _, set := range r.pending {
		if _, ok := set[prev]; ok {
			delete(set, prev)
			set[m.ID] = struct{}{}
			moved++
		}
	}
	for _, th := range r.sends {
		th.rename(prev, m.ID)
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("from", string(prev)).Str("to", string(m.ID)).Int("pending", moved).Msg("member migrated")

	r.emit.Emit(m.ID, domain.Joined{
		Msg:     joinedMessage(m.Nick, r.id, r.secret != ""),
		SID:     m.ID,
		Secured: r.secret != "",
	})
	return nil
}

// Leave runs the departure protocol for sid. It returns the departed member
// (nil when sid was not a member) and whether the room is now empty.
func (r *roomImpl) Leave(sid domain.ConnID) (*domain.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.bySID[sid]
	if !ok {
		return nil, len(r.bySID) == 0
	}

	for _, id := range slices.Sorted(maps.Keys(r.pending)) {
		set := r.pending[id]
		if _, waiting := set[sid]; !waiting {
			continue
		}
		delete(set, sid)
		r.broadcastLocked("", domain.Unread{ID: id, Count: len(set)})
		if len(set) == 0 {
			r.settleLocked(id)
		}
	}

	delete(r.bySID, sid)
	r.order = slices.DeleteFunc(r.order, func(id domain.ConnID) bool { return id == sid })
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Int("members", len(r.bySID)).Msg("member removed")

	r.broadcastLocked(sid, domain.PeerLeft{Nick: m.DisplayNick()})
	return m, len(r.bySID) == 0
}

func (r *roomImpl) Publish(from domain.ConnID, kind SendKind, id domain.MessageID, out Outgoing) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return PublishResult{}, domain.ErrUnknownRoom
	}
	sender, ok := r.bySID[from]
	if !ok {
		return PublishResult{}, domain.ErrNotJoined
	}

	th := r.sends[kind]
	now := r.opts.now()
	if th.IsThrottled(from, now) {
		log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(from)).Stringer("kind", kind).Msg("send throttled")
		return PublishResult{}, domain.ErrThrottled
	}
	th.Record(from, now)

	recipients := make([]domain.ConnID, 0, len(r.order))
	for _, sid := range r.order {
		if sid != from {
			recipients = append(recipients, sid)
		}
	}

	track := r.opts.AckTracking && r.trackableLocked(id)
	if track && len(recipients) > 0 {
		set := make(ackSet, len(recipients))
		for _, sid := range recipients {
			set[sid] = struct{}{}
		}
		r.pending[id] = set
	}

	ev := out(sender.DisplayNick(), now.UnixMilli())
	for _, sid := range recipients {
		r.emit.Emit(sid, ev)
	}
	res := PublishResult{SentTo: len(recipients)}
	switch {
	case track:
		res.Pending = len(recipients)
		r.broadcastLocked("", domain.Unread{ID: id, Count: len(recipients)})
	case r.opts.AckTracking && id != "":
		// A reused id keeps its existing count.
		r.broadcastLocked("", domain.Unread{ID: id, Count: len(r.pending[id])})
	}
	return res, nil
}

// Ack removes from out of id's pending set. It returns the remaining count and
// whether anything changed. With ack tracking off a member's read is relayed
// as is.
func (r *roomImpl) Ack(from domain.ConnID, id domain.MessageID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, false
	}
	if !r.opts.AckTracking {
		if _, ok := r.bySID[from]; !ok || id == "" {
			return 0, false
		}
		r.broadcastLocked(from, domain.Read{ID: id})
		return 0, true
	}

	set, ok := r.pending[id]
	if !ok {
		return 0, false
	}
	if _, waiting := set[from]; !waiting {
		return len(set), false
	}
	delete(set, from)
	count := len(set)

	r.broadcastLocked("", domain.Unread{ID: id, Count: count})
	r.broadcastLocked(from, domain.Read{ID: id})
	if count == 0 {
		r.settleLocked(id)
	}
	return count, true
}

func (r *roomImpl) Typing(from domain.ConnID, state bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.bySID[from]
	if !ok || r.closed {
		return false
	}
	r.broadcastLocked(from, domain.Typing{Nick: m.DisplayNick(), State: state})
	return true
}

func (r *roomImpl) PendingCount(id domain.MessageID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.pending[id]
	return len(set), ok
}

func (r *roomImpl) CloseIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bySID) != 0 {
		return false
	}
	r.closed = true
	return true
}

// An empty key against a secured room is a mismatch.
func (r *roomImpl) checkSecretLocked(secret string) error {
	if r.secret != "" && secret != r.secret {
		return domain.ErrSecretMismatch
	}
	if r.secret == "" && secret != "" {
		return domain.ErrSecretNotAllowed
	}
	return nil
}

// trackableLocked reports whether id may open a new pending set.
func (r *roomImpl) trackableLocked(id domain.MessageID) bool {
	if id == "" {
		return false
	}
	if _, ok := r.pending[id]; ok {
		return false
	}
	_, done := r.settled[id]
	return !done
}

func (r *roomImpl) settleLocked(id domain.MessageID) {
	delete(r.pending, id)
	r.settled[id] = struct{}{}
}

// broadcastLocked emits ev to every member except skip, in join order.
func (r *roomImpl) broadcastLocked(skip domain.ConnID, ev domain.Event) {
	for _, sid := range r.order {
		if sid == skip {
			continue
		}
		r.emit.Emit(sid, ev)
	}
}

func (r *roomImpl) resetLocked() {
	r.secret = ""
	r.sends = map[SendKind]*throttle{
		SendText:       newThrottle(r.opts.Text),
		SendAttachment: newThrottle(r.opts.Attachment),
	}
	r.pending = make(map[domain.MessageID]ackSet)
	r.settled = make(map[domain.MessageID]struct{})
}

func joinedMessage(nick string, room domain.RoomID, secured bool) string {
	msg := fmt.Sprintf("%s joined room %s", nick, room)
	if secured {
		msg += " (key applied)"
	}
	return msg
}
