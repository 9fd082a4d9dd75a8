package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/sanitize"
	"github.com/rs/zerolog/log"
)

// SendText relays a text message to the sender's peers. Sends to rooms the
// sender is not in are dropped without notice.
func (o *Orchestrator) SendText(sid domain.ConnID, req TextRequest) error {
	roomID := domain.RoomID(sanitize.String(req.Room, domain.MaxRoomIDLen))
	id := domain.MessageID(sanitize.String(req.ID, domain.MaxMessageIDLen))
	body := sanitize.String(req.Text, domain.MaxTextLen)

	room, err := o.joinedRoom(sid, roomID)
	if err != nil {
		return err
	}
	res, err := room.Publish(sid, core.SendText, id, func(nick string, ts int64) domain.Event {
		return domain.TextMessage{ID: id, Nick: nick, Text: body, TS: ts}
	})
	return o.settleSend(sid, roomID, res, err)
}

// SendAttachment validates and relays an inline attachment.
func (o *Orchestrator) SendAttachment(sid domain.ConnID, req FileRequest) error {
	roomID := domain.RoomID(sanitize.String(req.Room, domain.MaxRoomIDLen))
	id := domain.MessageID(sanitize.String(req.ID, domain.MaxMessageIDLen))
	name := sanitize.String(req.Name, domain.MaxFilenameLen)
	mime := sanitize.String(req.Type, domain.MaxMimeTypeLen)
	size := sanitize.Number(req.Size)

	room, err := o.joinedRoom(sid, roomID)
	if err != nil {
		return err
	}

	limits := o.Policy.Attachments
	switch {
	case size > limits.MaxBytes:
		o.info(sid, fmt.Sprintf("file is too large (max %d bytes)", limits.MaxBytes))
		return domain.ErrAttachmentTooLarge
	case !limits.Allows(mime):
		o.info(sid, "this file type is not allowed")
		return domain.ErrAttachmentType
	case !sanitize.IsDataURI(req.Data, limits.MaxDataURI):
		o.info(sid, "the file data is not valid")
		return domain.ErrAttachmentData
	}
	data := req.Data.(string)

	res, err := room.Publish(sid, core.SendAttachment, id, func(nick string, ts int64) domain.Event {
		return domain.FileMessage{ID: id, Nick: nick, Name: name, Type: mime, Size: size, Data: data, TS: ts}
	})
	return o.settleSend(sid, roomID, res, err)
}

// Read records that sid has seen message id. Unknown rooms, unknown ids and
// repeated reads are no-ops.
func (o *Orchestrator) Read(sid domain.ConnID, req ReadRequest) {
	roomID := domain.RoomID(sanitize.String(req.Room, domain.MaxRoomIDLen))
	id := domain.MessageID(sanitize.String(req.ID, domain.MaxMessageIDLen))
	if roomID == "" || id == "" {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	if count, changed := room.Ack(sid, id); changed {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("id", string(id)).Int("unread", count).Msg("read")
	}
}

// Typing relays a presence signal to the other members as is.
func (o *Orchestrator) Typing(sid domain.ConnID, req TypingRequest) {
	roomID := domain.RoomID(sanitize.String(req.Room, domain.MaxRoomIDLen))
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.Typing(sid, sanitize.Truthy(req.State))
}

func (o *Orchestrator) settleSend(sid domain.ConnID, roomID domain.RoomID, res core.PublishResult, err error) error {
	switch {
	case err == nil:
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Int("sent_to", res.SentTo).Int("pending", res.Pending).Msg("message relayed")
		return nil
	case errors.Is(err, domain.ErrThrottled):
		o.info(sid, "you are sending too fast, please wait a moment")
	default:
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Err(err).Msg("send dropped")
	}
	return err
}
