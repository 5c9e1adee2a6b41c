package a2a

// ============================================================================
// STREAMING EVENT PAYLOADS - one SSE data: frame each
// ============================================================================

// StreamChunk is one message-chunk event in an SSE stream. Indices are
// strictly increasing per stream; after LastChunk no further data events
// follow.
type StreamChunk struct {
	Content   string `json:"content"`
	Index     int    `json:"index"`
	Append    bool   `json:"append"`
	LastChunk bool   `json:"lastChunk,omitempty"`
}

// TaskStreamEvent is one task-update event in an SSE stream. Emitted task
// dictionaries carry non-decreasing status.state and artifact lists that
// extend the previous event's.
type TaskStreamEvent struct {
	Task      map[string]any `json:"task"`
	Index     int            `json:"index"`
	Append    bool           `json:"append"`
	LastChunk bool           `json:"lastChunk,omitempty"`
}

// StreamError is the payload of an "event: error" frame.
type StreamError struct {
	Error string `json:"error"`
}

// StreamHandshake is the optional first frame of a task stream.
type StreamHandshake struct {
	Message  string `json:"message,omitempty"`
	Type     string `json:"type,omitempty"`
	StreamID string `json:"stream_id,omitempty"`
}
