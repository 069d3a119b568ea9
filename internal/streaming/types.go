package streaming

import "time"

// EventType represents the type of SSE event
type EventType string

const (
	EventTypeProgress  EventType = "progress"
	EventTypeFile      EventType = "file"
	EventTypeComplete  EventType = "complete"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

// Event represents a Server-Sent Event on an import session stream
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ProgressEvent reports how far an import has gotten
type ProgressEvent struct {
	FileName   string  `json:"fileName"`
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// FileEvent reports the outcome of one file within an import session
type FileEvent struct {
	SessionID  string `json:"sessionId"`
	FileName   string `json:"fileName"`
	Format     string `json:"format,omitempty"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Error      string `json:"error,omitempty"`
}

// ErrorEvent reports a session-fatal failure
type ErrorEvent struct {
	Message  string `json:"message"`
	FileName string `json:"fileName,omitempty"`
}
