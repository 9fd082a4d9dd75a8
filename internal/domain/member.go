// Package domain contains entities without logic, just meta-data
package domain

// GuestNick is shown when a member has no usable nickname.
const GuestNick = "guest"

// ConnID identifies one live connection. A reconnecting client gets a new one.
type ConnID string

// Member represents a connection's participation in a room.
// No transport or lifecycle logic here.
type Member struct {
	ID   ConnID
	Nick string
	Room RoomID
	// ClientToken is the HTTP client token the connection was opened with.
	ClientToken string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id ConnID, nick string, room RoomID, token string) *Member {
	return &Member{ID: id, Nick: nick, Room: room, ClientToken: token}
}

// DisplayNick returns the nickname or GuestNick when it is empty.
func (m *Member) DisplayNick() string {
	if m == nil || m.Nick == "" {
		return GuestNick
	}
	return m.Nick
}

type SessionState int

const (
	StateUnjoined SessionState = iota
	StateJoining
	StateJoined
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
