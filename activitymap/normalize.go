// Package activitymap converts session activity events into a flat record
// shape for audit logs and downstream consumers.
package activitymap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	session "github.com/goliatone/go-session"
)

const (
	// MetadataKeyDomain stores the identity domain of the event.
	MetadataKeyDomain = "domain"
	// MetadataKeyFromStatus stores the source session status.
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus stores the target session status.
	MetadataKeyToStatus = "to_status"
)

const (
	defaultChannel    = "session"
	defaultObjectType = "session"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	actorResolver func(session.ActivityEvent) string
}

// Normalize converts a session.ActivityEvent into a Normalized record. The
// object is the domain; the actor is the login identifier when the event
// carries one.
func Normalize(event session.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(resolveActor(event, options.actorResolver), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.Domain),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the channel of normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type of normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorResolver overrides actor extraction.
func WithActorResolver(resolver func(session.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.actorResolver = resolver
	}
}

// WithActorFallback sets the actor id used when none can be resolved.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func resolveActor(event session.ActivityEvent, resolver func(session.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	if id, ok := event.Metadata["identifier"]; ok {
		return strings.TrimSpace(fmt.Sprint(id))
	}
	return ""
}

func normalizeMetadata(event session.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+3)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	if event.Domain != "" {
		metadata[MetadataKeyDomain] = event.Domain
	}
	if event.FromStatus != "" {
		metadata[MetadataKeyFromStatus] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		metadata[MetadataKeyToStatus] = string(event.ToStatus)
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// Recorder is a session.ActivitySink that keeps normalized records in
// memory, in arrival order.
type Recorder struct {
	mu      sync.Mutex
	opts    []Option
	records []Normalized
}

var _ session.ActivitySink = (*Recorder)(nil)

// NewRecorder creates a Recorder applying opts to every event.
func NewRecorder(opts ...Option) *Recorder {
	return &Recorder{opts: opts}
}

// Record implements session.ActivitySink.
func (r *Recorder) Record(_ context.Context, event session.ActivityEvent) error {
	normalized := Normalize(event, r.opts...)
	r.mu.Lock()
	r.records = append(r.records, normalized)
	r.mu.Unlock()
	return nil
}

// Records returns a copy of the recorded events.
func (r *Recorder) Records() []Normalized {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Normalized(nil), r.records...)
}
