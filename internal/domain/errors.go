package domain

import "errors"

var (
	ErrBadParams        = errors.New("bad params")
	ErrRoomFull         = errors.New("room full")
	ErrSecretMismatch   = errors.New("secret mismatch")
	ErrSecretNotAllowed = errors.New("secret not allowed")

	ErrThrottled          = errors.New("throttled")
	ErrAttachmentTooLarge = errors.New("attachment too large")
	ErrAttachmentType     = errors.New("attachment type not allowed")
	ErrAttachmentData     = errors.New("attachment data invalid")

	ErrUnknownRoom = errors.New("unknown room")
	ErrNotJoined   = errors.New("not joined")
)

// JoinErrorCode maps a join rejection to the code sent to the client.
func JoinErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrBadParams):
		return "bad_params"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrSecretMismatch):
		return "secret_mismatch"
	case errors.Is(err, ErrSecretNotAllowed):
		return "secret_not_allowed"
	default:
		return "join_failed"
	}
}
