package domain

type (
	RoomID    string
	MessageID string
)

const (
	MaxRoomIDLen    = 40
	MaxNicknameLen  = 24
	MaxSecretLen    = 50
	MaxMessageIDLen = 64
	MaxTextLen      = 2000
	MaxFilenameLen  = 140
	MaxMimeTypeLen  = 100

	MaxAttachmentBytes = 2_000_000
	MaxDataURILen      = 7_000_000

	DefaultCapacity = 2
)

// DefaultAllowedTypes are accepted in addition to any image/* type.
var DefaultAllowedTypes = []string{
	"image/png",
	"image/jpeg",
	"image/webp",
	"image/gif",
	"application/pdf",
	"text/plain",
	"application/zip",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-excel",
}
