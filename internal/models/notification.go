package models

import (
	"encoding/json"
	"time"
)

// Realtime event names shared by the gateway, the services that emit
// events and the terminal client.
const (
	EventConnected         = "connected"
	EventSubscribe         = "subscribe"
	EventSubscribed        = "subscribed"
	EventUnsubscribe       = "unsubscribe"
	EventUnsubscribed      = "unsubscribed"
	EventPing              = "ping"
	EventPong              = "pong"
	EventError             = "error"
	EventApplicationStatus = "application:status-update"
	EventScholarshipMatch  = "scholarship:new-match"
	EventDocumentGenerated = "document:generation-complete"
	EventNotification      = "notification"
	EventChatChunk         = "chat:chunk"
	EventChatError         = "chat:error"
)

// Envelope is the frame exchanged over the realtime channel in both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data into an envelope for event.
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// ApplicationStatusUpdate is the payload of application:status-update.
type ApplicationStatusUpdate struct {
	ApplicationID   string            `json:"application_id"`
	ScholarshipName string            `json:"scholarship_name"`
	Status          ApplicationStatus `json:"status"`
	PreviousStatus  ApplicationStatus `json:"previous_status"`
	Timestamp       time.Time         `json:"timestamp"`
}

// ScholarshipMatch is the payload of scholarship:new-match.
type ScholarshipMatch struct {
	ScholarshipID string    `json:"scholarship_id"`
	Name          string    `json:"name"`
	Organization  string    `json:"organization"`
	Deadline      time.Time `json:"deadline"`
	Timestamp     time.Time `json:"timestamp"`
}

// DocumentGenerated is the payload of document:generation-complete.
type DocumentGenerated struct {
	DocumentID string       `json:"document_id"`
	Title      string       `json:"title"`
	Type       DocumentType `json:"type"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Notification is a free-form message, used by admin broadcasts.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     string    `json:"level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Connected is the payload of the first event on a new connection.
type Connected struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// Subscription is the payload of subscribe, unsubscribe and their replies.
type Subscription struct {
	Events []string `json:"events"`
}

// Pong answers a client ping.
type Pong struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is the payload of the error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ChatChunk is one piece of a streamed assistant reply. The final chunk has
// Done set and carries the full response.
type ChatChunk struct {
	SessionID    string    `json:"session_id"`
	Chunk        string    `json:"chunk"`
	Done         bool      `json:"done"`
	FullResponse string    `json:"full_response,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ChatError reports a failed stream.
type ChatError struct {
	SessionID string    `json:"session_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// PollResponse is returned by the polling transport.
type PollResponse struct {
	Events []Envelope `json:"events"`
}

// Broadcast is an admin announcement. Role or Topic narrow the audience;
// with neither set it goes to every connected user.
type Broadcast struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
	Role    Role   `json:"role,omitempty"`
	Topic   string `json:"topic,omitempty"`
}

// NotificationStats is returned by the admin stats endpoint.
type NotificationStats struct {
	ConnectedClients int `json:"connected_clients"`
	ConnectedUsers   int `json:"connected_users"`
}
