package domain

// OutboundPayload is the message shape posted to every webhook target.
type OutboundPayload struct {
	Username  string
	Content   string
	AvatarURL string // empty when enrichment is disabled or failed

	// Optional single attachment. FileBytes is nil when no file is sent.
	Filename  string
	FileBytes []byte
}

// TargetResult is the outcome of posting one payload to one target.
type TargetResult struct {
	Target     string
	StatusCode int // 0 when the request never completed
	OK         bool
	Err        error
}
