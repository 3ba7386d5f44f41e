package amqp

import (
	"testing"
	"time"
)

func TestExpenseChangedMessageRoundTrip(t *testing.T) {
	msg := NewExpenseChangedMessage("alice", "exp-1", OpCreated)
	if msg.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := ExpenseChangedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.OwnerID != "alice" || got.ExpenseID != "exp-1" || got.Op != OpCreated {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Timestamp.Truncate(time.Second).Equal(msg.Timestamp.Truncate(time.Second)) {
		t.Fatalf("timestamp mismatch: %v vs %v", got.Timestamp, msg.Timestamp)
	}
}

func TestExpenseChangedMessageFromJSONInvalid(t *testing.T) {
	if _, err := ExpenseChangedMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
