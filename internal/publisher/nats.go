// Package publisher forwards collector events to NATS.
package publisher

import (
	"context"
	"fmt"

	"github.com/blockedby/channel-map/internal/collector"
)

// subjects
const (
	SubjectGroupAdded   = "groups.added"
	SubjectGroupUpdated = "groups.updated"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements collector.EventPublisher
type NATSPublisher struct {
	js NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(js NATSClient) *NATSPublisher {
	return &NATSPublisher{js: js}
}

// Subject returns the subject an event is published on.
func Subject(event collector.GroupEvent) string {
	if event.Kind == collector.EventAdded {
		return SubjectGroupAdded
	}
	return SubjectGroupUpdated
}

// PublishGroupEvent publishes a group event
func (p *NATSPublisher) PublishGroupEvent(ctx context.Context, event collector.GroupEvent) error {
	if err := p.js.Publish(ctx, Subject(event), event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
