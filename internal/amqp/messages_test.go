package amqp

import (
	"testing"
	"time"
)

func TestNewEventMessage(t *testing.T) {
	before := time.Now()
	msg := NewEventMessage(KindTxnCreated, 7, 42)
	if msg.Kind != KindTxnCreated || msg.WorkspaceID != 7 || msg.EntityID != 42 {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Timestamp.Before(before) {
		t.Errorf("timestamp %v predates creation", msg.Timestamp)
	}
}

func TestEventMessageRoundTrip(t *testing.T) {
	msg := NewEventMessage(KindBillPaid, 1, 9)
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := EventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != msg.Kind || got.WorkspaceID != msg.WorkspaceID || got.EntityID != msg.EntityID {
		t.Errorf("round trip mismatch: %+v vs %+v", got, msg)
	}
}

func TestEventMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := EventMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
