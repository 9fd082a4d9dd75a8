package app

import (
	"strings"
	"time"

	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
)

type ReconnectPolicy string

const (
	// ReconnectMigrate moves membership and pending acks to the new identity.
	ReconnectMigrate ReconnectPolicy = "migrate"
	// ReconnectRejoin disconnects the old identity, then joins afresh.
	ReconnectRejoin ReconnectPolicy = "rejoin"
)

type AttachmentPolicy struct {
	MaxBytes     int64
	MaxDataURI   int
	AllowedTypes map[string]struct{}
}

// Allows reports whether mime is listed or is any image type.
func (p AttachmentPolicy) Allows(mime string) bool {
	if _, ok := p.AllowedTypes[mime]; ok {
		return true
	}
	return strings.HasPrefix(mime, "image/")
}

type Policy struct {
	Capacity    int
	AckTracking bool
	Reconnect   ReconnectPolicy
	Text        core.ThrottlePolicy
	Attachment  core.ThrottlePolicy
	Attachments AttachmentPolicy
}

func DefaultPolicy() Policy {
	return Policy{
		Capacity:    domain.DefaultCapacity,
		AckTracking: true,
		Reconnect:   ReconnectMigrate,
		Text:        core.ThrottlePolicy{Limit: 8, Window: 10 * time.Second},
		Attachment:  core.ThrottlePolicy{Limit: 5, Window: 15 * time.Second},
		Attachments: AttachmentPolicy{
			MaxBytes:     domain.MaxAttachmentBytes,
			MaxDataURI:   domain.MaxDataURILen,
			AllowedTypes: typeSet(domain.DefaultAllowedTypes),
		},
	}
}

func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}
	p.Capacity = cfg.Room.Capacity
	p.AckTracking = cfg.Room.AckTracking
	if cfg.Room.ReconnectPolicy != "" {
		p.Reconnect = ReconnectPolicy(cfg.Room.ReconnectPolicy)
	}
	p.Text = core.ThrottlePolicy{Limit: cfg.Throttle.Text.Limit, Window: cfg.Throttle.Text.Window}
	p.Attachment = core.ThrottlePolicy{Limit: cfg.Throttle.Attachment.Limit, Window: cfg.Throttle.Attachment.Window}
	p.Attachments.MaxBytes = cfg.Attachment.MaxBytes
	p.Attachments.MaxDataURI = cfg.Attachment.MaxDataURI
	if len(cfg.Attachment.AllowedTypes) > 0 {
		p.Attachments.AllowedTypes = typeSet(cfg.Attachment.AllowedTypes)
	}
	return p
}

// RoomOptions derives the per-room capability flags.
func (p Policy) RoomOptions(now func() time.Time) core.RoomOptions {
	return core.RoomOptions{
		Capacity:    p.Capacity,
		AckTracking: p.AckTracking,
		Text:        p.Text,
		Attachment:  p.Attachment,
		Now:         now,
	}
}

func typeSet(types []string) map[string]struct{} {
	out := make(map[string]struct{}, len(types))
	for _, t := range types {
		out[t] = struct{}{}
	}
	return out
}
