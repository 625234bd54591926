package events

import (
	"context"

	"github.com/alfredjeanlab/pairing/internal/model"
)

// Event topic constants. Each audit event kind is published on
// "pairing." + kind.
const (
	TopicPrefix         = "pairing."
	TopicRequestInit    = TopicPrefix + string(model.EventRequestInit)
	TopicRequestPolled  = TopicPrefix + string(model.EventRequestPolled)
	TopicRequestClaimed = TopicPrefix + string(model.EventRequestClaimed)

	// TopicAll matches every pairing topic.
	TopicAll = "pairing.>"
)

// TopicFor returns the subject an audit event kind is published on.
func TopicFor(kind model.EventKind) string {
	return TopicPrefix + string(kind)
}

// RequestEvent is the payload published for every recorded transition. It
// carries the audit record and the client context only; claim tokens never
// leave the store.
type RequestEvent struct {
	Audit    *model.AuditEvent `json:"audit"`
	ClientID string            `json:"client_id,omitempty"`
	Status   model.Status      `json:"status,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber delivers raw payloads published on a topic. The cancel func
// unsubscribes and closes the channel; it is safe to call twice.
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// NoopPublisher drops every event. The service uses it when no bus URL is
// configured.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
