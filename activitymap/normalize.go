package activitymap

import (
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-registration"
)

const (
	// MetadataKeySource names who triggered the event, e.g. "admin".
	MetadataKeySource = "source"
	// MetadataKeyEmail stores the account email.
	MetadataKeyEmail = "email"
	// MetadataKeyEventID stores the id of the originating event.
	MetadataKeyEventID = "event_id"
	// MetadataKeyIP stores the client address of the originating request.
	MetadataKeyIP = "ip"
	// MetadataKeyUserAgent stores the user agent of the originating request.
	MetadataKeyUserAgent = "user_agent"
)

const (
	defaultChannel    = "registration"
	defaultObjectType = "account"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
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
	now           func() time.Time
}

// Normalize converts a registration.Event into the activity shape. The
// account acts on itself unless the event metadata names a source.
func Normalize(event registration.Event, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	source, _ := event.Metadata[MetadataKeySource].(string)
	actorID := firstNonEmpty(
		strings.TrimSpace(source),
		strings.TrimSpace(event.AccountID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.Name),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   strings.TrimSpace(event.AccountID),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event names no actor.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func normalizeMetadata(event registration.Event) map[string]any {
	metadata := map[string]any{}
	maps.Copy(metadata, event.Metadata)

	set := func(key, value string) {
		if value = strings.TrimSpace(value); value == "" {
			return
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyEventID, event.ID)
	set(MetadataKeyEmail, event.Email)
	set(MetadataKeyIP, event.Request.IP)
	set(MetadataKeyUserAgent, event.Request.UserAgent)

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
