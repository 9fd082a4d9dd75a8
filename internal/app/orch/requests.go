package orch

// Inbound payloads keep client values untyped; the sanitize package decides
// what survives.

type JoinRequest struct {
	Room any `json:"room"`
	Nick any `json:"nick"`
	Key  any `json:"key"`
}

type RejoinRequest struct {
	JoinRequest
	// Prev is the sid the client was given by its previous joined event.
	Prev any `json:"prev"`
}

type TextRequest struct {
	Room any `json:"room"`
	ID   any `json:"id"`
	Text any `json:"text"`
}

type FileRequest struct {
	Room any `json:"room"`
	ID   any `json:"id"`
	Name any `json:"name"`
	Type any `json:"type"`
	Size any `json:"size"`
	Data any `json:"data"`
}

type ReadRequest struct {
	Room any `json:"room"`
	ID   any `json:"id"`
}

type TypingRequest struct {
	Room  any `json:"room"`
	State any `json:"state"`
}
