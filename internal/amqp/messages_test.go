package amqp

import (
	"testing"
	"time"
)

func TestTransactionSyncMessage_RoundTrip(t *testing.T) {
	msg := NewTransactionSyncMessage("t1", "u1")
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := TransactionSyncMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.ID != "t1" || got.UserID != "u1" {
		t.Errorf("round trip = %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp should be set on creation")
	}
}

func TestTransactionDeleteMessage_RoundTrip(t *testing.T) {
	msg := &TransactionDeleteMessage{
		ID:          "t2",
		UserID:      "u1",
		Description: "luz",
		Amount:      "1234.56",
		Date:        time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
	}
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := TransactionDeleteMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.ID != "t2" || got.Amount != "1234.56" || got.Description != "luz" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestMessageFromJSON_Malformed(t *testing.T) {
	if _, err := TransactionSyncMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("malformed sync payload should fail")
	}
	if _, err := TransactionDeleteMessageFromJSON([]byte("[]")); err == nil {
		t.Error("wrong-shape delete payload should fail")
	}
}
