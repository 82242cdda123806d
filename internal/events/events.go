package events

import "context"

// Streams
const (
	StreamCampaign = "events:campaign"
)

// Event types
const (
	EventCampaignStatusChanged = "campaign_status_changed"
	EventPhaseCompleted        = "phase_completed"
	EventActionRecorded        = "action_recorded"
	EventAdmissionDenied       = "admission_denied"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
