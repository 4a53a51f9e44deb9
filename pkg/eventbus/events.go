package eventbus

import "time"

// Kind is the closed set of event kinds streamed to subscribers.
type Kind string

const (
	KindConnectionEstablished Kind = "connection_established"
	KindWorkflowStatusUpdate  Kind = "workflow_status_update"
	KindNodeStatusUpdate      Kind = "node_status_update"
	KindContentUpdate         Kind = "content_update"
	KindMetricsUpdate         Kind = "metrics_update"
	KindError                 Kind = "error"
	KindPong                  Kind = "pong"
)

// Event is the envelope published to a document's subscribers; every
// kind's payload-specific fields live in Payload.
type Event struct {
	Kind       Kind           `json:"kind"`
	DocumentID string         `json:"document_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload"`
}

func NewEvent(documentID string, kind Kind, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		Kind:       kind,
		DocumentID: documentID,
		Timestamp:  time.Now(),
		Payload:    payload,
	}
}
