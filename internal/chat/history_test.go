package chat

import (
	"fmt"
	"testing"
	"time"
)

func msgAt(id string, sec int) Message {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        id,
		CreatedAt:      base.Add(time.Duration(sec) * time.Second),
	}
}

func TestHistoryAppendInOrder(t *testing.T) {
	h := newHistory()

	for i := 1; i <= 3; i++ {
		if !h.Append(msgAt(fmt.Sprintf("m%d", i), i)) {
			t.Fatalf("append m%d should report a change", i)
		}
	}

	msgs := h.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if msgs[i].ID != want {
			t.Errorf("index %d: expected %q, got %q", i, want, msgs[i].ID)
		}
	}
}

func TestHistoryDuplicateIDDropped(t *testing.T) {
	h := newHistory()

	if !h.Append(msgAt("m1", 1)) {
		t.Fatal("first append should change the list")
	}
	if h.Append(msgAt("m1", 99)) {
		t.Fatal("duplicate id must be dropped even with a different timestamp")
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", h.Len())
	}
}

func TestHistoryOutOfOrderInsert(t *testing.T) {
	h := newHistory()

	h.Append(msgAt("m1", 10))
	h.Append(msgAt("m3", 30))
	h.Append(msgAt("m2", 20)) // arrives late, lands in the middle

	msgs := h.Messages()
	for i, want := range []string{"m1", "m2", "m3"} {
		if msgs[i].ID != want {
			t.Errorf("index %d: expected %q, got %q", i, want, msgs[i].ID)
		}
	}
}

func TestHistoryEqualTimestampsKeepArrivalOrder(t *testing.T) {
	h := newHistory()

	h.Append(msgAt("a", 5))
	h.Append(msgAt("b", 5))
	h.Append(msgAt("c", 5))

	msgs := h.Messages()
	for i, want := range []string{"a", "b", "c"} {
		if msgs[i].ID != want {
			t.Errorf("index %d: expected %q, got %q", i, want, msgs[i].ID)
		}
	}
}

func TestHistoryEqualTimestampInsertSortsAfter(t *testing.T) {
	h := newHistory()

	h.Append(msgAt("m1", 10))
	h.Append(msgAt("m2", 20))
	// Same timestamp as m1: must slot after m1, before m2.
	h.Append(msgAt("m1b", 10))

	msgs := h.Messages()
	for i, want := range []string{"m1", "m1b", "m2"} {
		if msgs[i].ID != want {
			t.Errorf("index %d: expected %q, got %q", i, want, msgs[i].ID)
		}
	}
}

func TestHistoryContains(t *testing.T) {
	h := newHistory()
	h.Append(msgAt("m1", 1))

	if !h.Contains("m1") {
		t.Error("expected Contains(m1) to be true")
	}
	if h.Contains("m2") {
		t.Error("expected Contains(m2) to be false")
	}
}

func TestHistoryMessagesReturnsCopy(t *testing.T) {
	h := newHistory()
	h.Append(msgAt("m1", 1))

	msgs := h.Messages()
	msgs[0].Content = "mutated"

	if h.Messages()[0].Content != "m1" {
		t.Error("Messages must return a copy, not the backing slice")
	}
}
