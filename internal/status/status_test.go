package status

import (
	"context"
	"testing"
	"time"
)

func TestChannelLatestOverwrites(t *testing.T) {
	c := NewChannel(nil)
	if !c.Latest().IsZero() {
		t.Fatalf("new channel should be empty, got %+v", c.Latest())
	}

	ctx := context.Background()
	c.Success(ctx, "login", "Login successful")
	c.Failure(ctx, "load", "Failed to fetch entries")

	got := c.Latest()
	if got.Kind != KindFailure || got.Message != "Failed to fetch entries" || got.Operation != "load" {
		t.Fatalf("unexpected latest %+v", got)
	}
	if got.At.IsZero() {
		t.Fatal("publish should stamp the time")
	}
}

func TestChannelKeepsExplicitTimestamp(t *testing.T) {
	c := NewChannel(nil)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Publish(context.Background(), Status{Kind: KindInfo, Message: "x", At: at})
	if !c.Latest().At.Equal(at) {
		t.Fatalf("timestamp overwritten: %v", c.Latest().At)
	}
}

func TestChannelSubscribe(t *testing.T) {
	c := NewChannel(nil)
	var seen []string
	unsubscribe := c.Subscribe(func(s Status) { seen = append(seen, s.Message) })

	c.Info(context.Background(), "", "one")
	unsubscribe()
	c.Info(context.Background(), "", "two")

	if len(seen) != 1 || seen[0] != "one" {
		t.Fatalf("unexpected notifications %v", seen)
	}
}

func TestChannelSubscriberMayReadLatest(t *testing.T) {
	c := NewChannel(nil)
	var observed Status
	c.Subscribe(func(Status) { observed = c.Latest() })
	c.Success(context.Background(), "create", "Entry created successfully")
	if observed.Message != "Entry created successfully" {
		t.Fatalf("subscriber saw %+v", observed)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{KindInfo: "info", KindSuccess: "success", KindFailure: "failure"}
	for k, want := range cases {
		if k.String() != want {
			t.Errorf("%d.String() = %q, want %q", k, k.String(), want)
		}
	}
}
