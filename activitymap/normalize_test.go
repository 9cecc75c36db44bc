package activitymap_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-registration"
	"github.com/goliatone/go-registration/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := registration.Event{
		ID:         "01HZX0000000000000000000AA",
		Name:       registration.EventUserRegistered,
		AccountID:  "account-100",
		Email:      "foo@bar.com",
		Request:    registration.RequestInfo{IP: "10.0.0.7", UserAgent: "curl/8"},
		Metadata:   map[string]any{"ticket": "SEC-204"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "account-100" {
		t.Fatalf("expected actor_id account-100, got %q", out.ActorID)
	}
	if out.Verb != string(registration.EventUserRegistered) {
		t.Fatalf("expected verb %q, got %q", registration.EventUserRegistered, out.Verb)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "account-100" {
		t.Fatalf("expected object_id account-100, got %q", out.ObjectID)
	}
	if out.Channel != "registration" {
		t.Fatalf("expected channel registration, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["ticket"] != "SEC-204" {
		t.Fatalf("expected metadata ticket SEC-204, got %#v", out.Metadata["ticket"])
	}
	if out.Metadata[activitymap.MetadataKeyEmail] != "foo@bar.com" {
		t.Fatalf("expected metadata email, got %#v", out.Metadata[activitymap.MetadataKeyEmail])
	}
	if out.Metadata[activitymap.MetadataKeyIP] != "10.0.0.7" {
		t.Fatalf("expected metadata ip, got %#v", out.Metadata[activitymap.MetadataKeyIP])
	}
	if out.Metadata[activitymap.MetadataKeyEventID] != event.ID {
		t.Fatalf("expected metadata event_id, got %#v", out.Metadata[activitymap.MetadataKeyEventID])
	}
}

func TestNormalizeAdminSourceIsActor(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(registration.Event{
		Name:      registration.EventUserActivated,
		AccountID: "account-7",
		Metadata:  map[string]any{activitymap.MetadataKeySource: "admin"},
	})

	if out.ActorID != "admin" {
		t.Fatalf("expected actor_id admin, got %q", out.ActorID)
	}
	if out.ObjectID != "account-7" {
		t.Fatalf("expected object_id account-7, got %q", out.ObjectID)
	}
}

func TestNormalizeOptionsAndFallbacks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := activitymap.Normalize(
		registration.Event{Name: registration.EventUserActivated},
		activitymap.WithDefaultChannel(" signup "),
		activitymap.WithDefaultObjectType("member"),
		activitymap.WithActorFallback("scheduler"),
		activitymap.WithClock(func() time.Time { return now }),
	)

	if out.ActorID != "scheduler" {
		t.Fatalf("expected actor fallback, got %q", out.ActorID)
	}
	if out.Channel != "signup" || out.ObjectType != "member" {
		t.Fatalf("unexpected channel/object type %q/%q", out.Channel, out.ObjectType)
	}
	if !out.OccurredAt.Equal(now) {
		t.Fatalf("expected clock fallback %v, got %v", now, out.OccurredAt)
	}
	if out.Metadata != nil {
		t.Fatalf("expected nil metadata, got %#v", out.Metadata)
	}
}

func TestNormalizeDoesNotMutateEventMetadata(t *testing.T) {
	t.Parallel()

	metadata := map[string]any{"source": "admin"}
	_ = activitymap.Normalize(registration.Event{
		Name:     registration.EventUserActivated,
		Email:    "foo@bar.com",
		Metadata: metadata,
	})

	if len(metadata) != 1 {
		t.Fatalf("expected metadata to stay untouched, got %#v", metadata)
	}
}
