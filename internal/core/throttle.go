package core

import (
	"time"

	"github.com/dkeye/Duet/internal/domain"
)

type SendKind int

const (
	SendText SendKind = iota
	SendAttachment
)

func (k SendKind) String() string {
	if k == SendAttachment {
		return "attachment"
	}
	return "text"
}

// ThrottlePolicy allows Limit sends per sender within Window.
type ThrottlePolicy struct {
	Limit  int
	Window time.Duration
}

type sendRecord struct {
	at   time.Time
	from domain.ConnID
}

// throttle is a sliding-window history of sends in one room.
// Not threadsafe: the owning room serializes access.
type throttle struct {
	policy ThrottlePolicy
	sends  []sendRecord
}

func newThrottle(p ThrottlePolicy) *throttle {
	return &throttle{policy: p}
}

// IsThrottled prunes entries older than the window and reports whether from
// already sent Limit times within it.
func (t *throttle) IsThrottled(from domain.ConnID, now time.Time) bool {
	if t.policy.Limit <= 0 {
		return false
	}
	windowStart := now.Add(-t.policy.Window)

	fresh := t.sends[:0]
	count := 0
	for _, s := range t.sends {
		if !s.at.After(windowStart) {
			continue
		}
		fresh = append(fresh, s)
		if s.from == from {
			count++
		}
	}
	clear(t.sends[len(fresh):])
	t.sends = fresh

	return count >= t.policy.Limit
}

func (t *throttle) Record(from domain.ConnID, now time.Time) {
	t.sends = append(t.sends, sendRecord{at: now, from: from})
}

// rename moves history from one identity to another.
func (t *throttle) rename(from, to domain.ConnID) {
	for i := range t.sends {
		if t.sends[i].from == from {
			t.sends[i].from = to
		}
	}
}
