package chat

import (
	"testing"
	"time"
)

func ts(sec int) *time.Time {
	t := time.Date(2025, 3, 4, 12, 0, sec, 0, time.UTC)
	return &t
}

func texts(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestSortByTimeOrdersCommittedMessages(t *testing.T) {
	msgs := []Message{
		{ID: "c", Text: "third", SentAt: ts(30)},
		{ID: "a", Text: "first", SentAt: ts(10)},
		{ID: "b", Text: "second", SentAt: ts(20)},
	}

	SortByTime(msgs)

	want := []string{"first", "second", "third"}
	for i, w := range want {
		if msgs[i].Text != w {
			t.Fatalf("position %d: got %q, want %q (full order %v)", i, msgs[i].Text, w, texts(msgs))
		}
	}
}

func TestSortByTimePendingSortsFirst(t *testing.T) {
	msgs := []Message{
		{ID: "a", Text: "committed", SentAt: ts(10)},
		{ID: "p", Text: "pending"},
	}

	SortByTime(msgs)

	if msgs[0].ID != "p" {
		t.Fatalf("pending message must sort before committed ones, got %v", texts(msgs))
	}
}

func TestSortByTimeStableForTies(t *testing.T) {
	msgs := []Message{
		{ID: "x", Text: "one", SentAt: ts(10)},
		{ID: "y", Text: "two", SentAt: ts(10)},
		{ID: "z", Text: "three", SentAt: ts(10)},
	}

	SortByTime(msgs)

	// Equal timestamps keep delivery order.
	want := []string{"one", "two", "three"}
	for i, w := range want {
		if msgs[i].Text != w {
			t.Fatalf("tie order changed: %v", texts(msgs))
		}
	}
}

func TestPending(t *testing.T) {
	if !(Message{}).Pending() {
		t.Fatal("message without timestamp must be pending")
	}
	if (Message{SentAt: ts(1)}).Pending() {
		t.Fatal("message with timestamp must not be pending")
	}
}
