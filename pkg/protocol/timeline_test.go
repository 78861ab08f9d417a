package protocol

import (
	"sync"
	"testing"
)

func ids(msgs []ChatMessage) []uint64 {
	out := make([]uint64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTimelineOrdering(t *testing.T) {
	tests := []struct {
		name   string
		insert []uint64
		want   []uint64
	}{
		{"already sorted", []uint64{1, 2, 3}, []uint64{1, 2, 3}},
		{"reversed", []uint64{5, 4, 3, 2, 1}, []uint64{1, 2, 3, 4, 5}},
		{"shuffled", []uint64{7, 2, 9, 1, 5}, []uint64{1, 2, 5, 7, 9}},
		{"duplicates collapse", []uint64{3, 1, 3, 2, 1}, []uint64{1, 2, 3}},
		{"pending last", []uint64{0, 4, 0, 2}, []uint64{2, 4, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewTimeline()
			for _, id := range tt.insert {
				tl.Insert(ChatMessage{ID: id, ContactID: 1})
			}

			if got := ids(tl.Messages()); !equalIDs(got, tt.want) {
				t.Errorf("Messages() ids = %v, want %v", got, tt.want)
			}
			if tl.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", tl.Len(), len(tt.want))
			}
		})
	}
}

func TestTimelineReplaceKeepsLatest(t *testing.T) {
	tl := NewTimeline()
	tl.Insert(ChatMessage{ID: 1, Text: "old"})
	tl.Insert(ChatMessage{ID: 1, Text: "new"})

	msgs := tl.Messages()
	if len(msgs) != 1 || msgs[0].Text != "new" {
		t.Errorf("Messages() = %+v, want single message with text \"new\"", msgs)
	}
}

func TestTimelineForContact(t *testing.T) {
	tl := NewTimeline()
	tl.Merge([]ChatMessage{
		{ID: 4, ContactID: 2},
		{ID: 1, ContactID: 2},
		{ID: 3, ContactID: 5},
		{ID: 2, ContactID: 2},
	})
	tl.Insert(ChatMessage{ContactID: 2, SentByMe: true, Text: "pending"})

	got := ids(tl.ForContact(2))
	want := []uint64{1, 2, 4, 0}
	if !equalIDs(got, want) {
		t.Errorf("ForContact(2) ids = %v, want %v", got, want)
	}

	if n := len(tl.ForContact(9)); n != 0 {
		t.Errorf("ForContact(9) returned %d messages, want 0", n)
	}

	tl.DropPending()
	if got := ids(tl.ForContact(2)); !equalIDs(got, []uint64{1, 2, 4}) {
		t.Errorf("ForContact(2) after DropPending ids = %v", got)
	}
}

func TestTimelineConcurrentInsert(t *testing.T) {
	tl := NewTimeline()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tl.Insert(ChatMessage{ID: uint64(i*4 + w + 1)})
			}
		}(w)
	}
	wg.Wait()

	msgs := tl.Messages()
	if len(msgs) != 400 {
		t.Fatalf("Messages() length = %d, want 400", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i-1].ID >= msgs[i].ID {
			t.Fatalf("timeline not sorted at %d: %d >= %d", i, msgs[i-1].ID, msgs[i].ID)
		}
	}
}
