package ws

import "time"

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageStage     MessageType = "pipeline.stage"
	MessageCompleted MessageType = "pipeline.completed"
	MessageFailed    MessageType = "pipeline.failed"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// StageData is the payload for pipeline.stage messages.
type StageData struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Step   int    `json:"step"`
	Total  int    `json:"total"`
}

// FailedData is the payload for pipeline.failed messages.
type FailedData struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}
