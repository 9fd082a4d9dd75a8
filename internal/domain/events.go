package domain

// Event is an outbound payload. EventType is the envelope "type".
type Event interface {
	EventType() string
}

type Joined struct {
	Msg     string `json:"msg"`
	SID     ConnID `json:"sid"`
	Secured bool   `json:"secured"`
}

type JoinError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type PeerJoined struct {
	Nick string `json:"nick"`
}

type PeerLeft struct {
	Nick string `json:"nick"`
}

type TextMessage struct {
	ID   MessageID `json:"id"`
	Nick string    `json:"nick"`
	Text string    `json:"text"`
	TS   int64     `json:"ts"`
}

type FileMessage struct {
	ID   MessageID `json:"id"`
	Nick string    `json:"nick"`
	Name string    `json:"name"`
	Type string    `json:"type"`
	Size int64     `json:"size"`
	Data string    `json:"data"`
	TS   int64     `json:"ts"`
}

// Unread carries the number of recipients that still have to read ID.
type Unread struct {
	ID    MessageID `json:"id"`
	Count int       `json:"count"`
}

type Read struct {
	ID MessageID `json:"id"`
}

type Typing struct {
	Nick  string `json:"nick"`
	State bool   `json:"state"`
}

type Info struct {
	Text string `json:"text"`
}

type KeepAlive struct {
	TS int64 `json:"ts"`
}

func (Joined) EventType() string      { return "joined" }
func (JoinError) EventType() string   { return "join_error" }
func (PeerJoined) EventType() string  { return "peer_joined" }
func (PeerLeft) EventType() string    { return "peer_left" }
func (TextMessage) EventType() string { return "msg" }
func (FileMessage) EventType() string { return "file" }
func (Unread) EventType() string      { return "unread" }
func (Read) EventType() string        { return "read" }
func (Typing) EventType() string      { return "typing" }
func (Info) EventType() string        { return "info" }
func (KeepAlive) EventType() string   { return "ka" }
