package api

// StreamingStatus is the lifecycle phase carried by a StreamEvent.
type StreamingStatus string

const (
	StreamStarted    StreamingStatus = "STARTED"
	StreamInProgress StreamingStatus = "IN-PROGRESS"
	StreamError      StreamingStatus = "ERROR"
	StreamCompleted  StreamingStatus = "COMPLETED"
)

// StreamAction tags what a StreamEvent carries.
type StreamAction string

const (
	ActionNotification StreamAction = "NOTIFICATION"
	ActionMessage      StreamAction = "MESSAGE"
	ActionAIResponse   StreamAction = "AI-RESPONSE"
	ActionError        StreamAction = "ERROR"
	ActionNoAction     StreamAction = "NO-ACTION"
)

// StreamEvent is the envelope written to a streaming sink, one JSON object
// per emission. Events are never stored.
type StreamEvent struct {
	Data            any             `json:"Data"`
	Error           *string         `json:"Error"`
	Status          bool            `json:"Status"`
	StreamingStatus StreamingStatus `json:"StreamingStatus"`
	Action          StreamAction    `json:"Action"`
}

// IsTerminal reports whether the event ends a stream.
func (e StreamEvent) IsTerminal() bool {
	return e.StreamingStatus == StreamCompleted
}
