package core

import (
	"errors"
	"time"

	"github.com/dkeye/Duet/internal/domain"
)

// ErrRoomClosed is returned by a room that was removed from its manager.
// Callers should fetch the room again.
var ErrRoomClosed = errors.New("room closed")

// Emitter delivers an event to one connection.
// Owned by the adapter. Emit must not block: rooms call it under their lock.
type Emitter interface {
	Emit(to domain.ConnID, ev domain.Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(to domain.ConnID, ev domain.Event)

func (f EmitterFunc) Emit(to domain.ConnID, ev domain.Event) { f(to, ev) }

// RoomOptions are the capability flags shared by every room of a manager.
type RoomOptions struct {
	// Capacity bounds membership. Zero means unbounded.
	Capacity    int
	AckTracking bool
	Text        ThrottlePolicy
	Attachment  ThrottlePolicy
	Now         func() time.Time
}

func (o RoomOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Outgoing builds the relayed event once the server timestamp is known.
type Outgoing func(nick string, ts int64) domain.Event

// PublishResult reports the fan-out of one send.
type PublishResult struct {
	SentTo  int
	Pending int
}

// RoomService is the core-facing API of a room.
// Every method is atomic with respect to the others and emits its events
// before returning. It never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	Secured() bool
	Snapshot() RoomInfo

	Join(m *domain.Member, secret string) error
	Migrate(prev domain.ConnID, m *domain.Member, secret string) error
	Leave(sid domain.ConnID) (*domain.Member, bool)
	Publish(from domain.ConnID, kind SendKind, id domain.MessageID, out Outgoing) (PublishResult, error)
	Ack(from domain.ConnID, id domain.MessageID) (int, bool)
	Typing(from domain.ConnID, state bool) bool
	PendingCount(id domain.MessageID) (int, bool)

	// CloseIfEmpty marks an empty room closed. Only the manager calls it.
	CloseIfEmpty() bool
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"members"`
	Capacity    int           `json:"capacity"`
	Secured     bool          `json:"secured"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	DeleteIfEmpty(id domain.RoomID) bool
	List() []RoomInfo
}
