package feed

import (
	"testing"
	"time"

	"github.com/karansanghvi/spendly/internal/core"
)

func snapshot(titles ...string) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, len(titles))
	for i, title := range titles {
		out[i] = core.ExpenseRecord{Title: title}
	}
	return out
}

func TestPublishDelivers(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("alice")
	defer sub.Unsubscribe()

	hub.Publish("alice", snapshot("coffee"))

	select {
	case got := <-sub.C:
		if len(got) != 1 || got[0].Title != "coffee" {
			t.Fatalf("unexpected snapshot: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestPublishCoalescesForSlowConsumer(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("alice")
	defer sub.Unsubscribe()

	hub.Publish("alice", snapshot("old"))
	hub.Publish("alice", snapshot("new"))

	got := <-sub.C
	if got[0].Title != "new" {
		t.Fatalf("expected latest snapshot, got %q", got[0].Title)
	}
	select {
	case extra, ok := <-sub.C:
		if ok {
			t.Fatalf("unexpected second snapshot: %+v", extra)
		}
	default:
	}
}

func TestPublishOnlyReachesMatchingOwner(t *testing.T) {
	hub := NewHub()
	alice := hub.Subscribe("alice")
	bob := hub.Subscribe("bob")
	defer alice.Unsubscribe()
	defer bob.Unsubscribe()

	hub.Publish("alice", snapshot("coffee"))

	select {
	case <-bob.C:
		t.Fatal("bob received alice's snapshot")
	default:
	}
	<-alice.C
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("alice")
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	if n := hub.Subscribers("alice"); n != 0 {
		t.Fatalf("Subscribers = %d, want 0", n)
	}

	// Publishing after unsubscribe must not panic or deliver.
	hub.Publish("alice", snapshot("late"))
	if _, ok := <-sub.C; ok {
		t.Fatal("received snapshot after unsubscribe")
	}
}

func TestMultipleSubscribersEachGetSnapshot(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("alice")
	b := hub.Subscribe("alice")
	defer a.Unsubscribe()
	defer b.Unsubscribe()

	hub.Publish("alice", snapshot("coffee"))

	for _, sub := range []*Subscription{a, b} {
		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatal("subscriber missed snapshot")
		}
	}
}
