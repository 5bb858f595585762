package stream

import "github.com/rhuss/mcpgate/pkg/api"

// Started opens a stream.
func Started() api.StreamEvent {
	return api.StreamEvent{Status: true, StreamingStatus: api.StreamStarted, Action: api.ActionNoAction}
}

// Notification reports progress text.
func Notification(text string) api.StreamEvent {
	return api.StreamEvent{Data: text, Status: true, StreamingStatus: api.StreamInProgress, Action: api.ActionNotification}
}

// Message carries one natural-language message from the backend.
func Message(text string) api.StreamEvent {
	return api.StreamEvent{Data: text, Status: true, StreamingStatus: api.StreamInProgress, Action: api.ActionMessage}
}

// AIResponse carries the final result data.
func AIResponse(data *api.ResultData) api.StreamEvent {
	return api.StreamEvent{Data: data, Status: true, StreamingStatus: api.StreamInProgress, Action: api.ActionAIResponse}
}

// Failure reports an error. data may be nil.
func Failure(data any, msg string) api.StreamEvent {
	return api.StreamEvent{Data: data, Error: &msg, Status: false, StreamingStatus: api.StreamError, Action: api.ActionError}
}

// Completed ends a stream.
func Completed() api.StreamEvent {
	return api.StreamEvent{Status: true, StreamingStatus: api.StreamCompleted, Action: api.ActionNoAction}
}
