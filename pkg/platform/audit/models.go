// Package audit defines the audit event model and the publisher contract.
// Consent lifecycle changes and denied data reads are compliance-relevant,
// so services emit events here rather than relying on request logs.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose. Categories
// map to retention policies downstream; this service only tags them.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// consent changes and data-access decisions. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and visibility.
	// Short retention, may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Action names the audited operation.
type Action string

const (
	ActionConsentGranted       Action = "consent_granted"
	ActionConsentRevoked       Action = "consent_revoked"
	ActionAccessRequestCreated Action = "access_request_created"
	ActionDataAccessDenied     Action = "data_access_denied"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out (memory, Kafka).
type Event struct {
	Category   EventCategory `json:"category"`
	Action     Action        `json:"action"`
	Timestamp  time.Time     `json:"timestamp"`
	UserID     string        `json:"user_id"`
	ThirdParty string        `json:"third_party_id,omitempty"`
	ConsentID  string        `json:"consent_id,omitempty"`
	DataTypes  []string      `json:"data_types,omitempty"`
	Purpose    string        `json:"purpose,omitempty"`
	Decision   string        `json:"decision,omitempty"`
	Reason     string        `json:"reason,omitempty"`

	// Enrichment from request context for trail completeness.
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Publisher emits audit events. Implementations decide delivery semantics;
// callers treat publish failures as non-fatal and log them.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Store persists events on the consumer side of a publisher.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used when auditing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// ChannelPublisher hands events to an in-process worker via a buffered
// channel. Publish blocks only when the buffer is full, and respects ctx.
type ChannelPublisher struct {
	inbox chan<- Event
}

func NewChannelPublisher(inbox chan<- Event) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.inbox <- event:
		return nil
	}
}
