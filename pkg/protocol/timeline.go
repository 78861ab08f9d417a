package protocol

import (
	"sort"
	"sync"
)

// Timeline keeps chat messages sorted by id. Messages still waiting for a
// server id (ID 0) stay after all confirmed messages in insertion order.
type Timeline struct {
	mu       sync.RWMutex
	messages []ChatMessage
	pending  []ChatMessage
}

// NewTimeline creates an empty timeline
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Insert adds a message at its sorted position. A confirmed message whose id
// is already present replaces the stored copy.
func (t *Timeline) Insert(m ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.insertLocked(m)
}

// Merge inserts every message of a list reply
func (t *Timeline) Merge(messages []ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range messages {
		t.insertLocked(m)
	}
}

func (t *Timeline) insertLocked(m ChatMessage) {
	if m.ID == 0 {
		t.pending = append(t.pending, m)
		return
	}

	i := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].ID >= m.ID
	})

	if i < len(t.messages) && t.messages[i].ID == m.ID {
		t.messages[i] = m
		return
	}

	t.messages = append(t.messages, ChatMessage{})
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = m
}

// DropPending forgets optimistic messages, usually after a fresh list
// reply has brought their confirmed copies
func (t *Timeline) DropPending() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = nil
}

// Messages returns a copy of all messages in order
func (t *Timeline) Messages() []ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ChatMessage, 0, len(t.messages)+len(t.pending))
	out = append(out, t.messages...)
	return append(out, t.pending...)
}

// ForContact returns the conversation with one contact in order
func (t *Timeline) ForContact(contactID uint64) []ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []ChatMessage
	for _, list := range [][]ChatMessage{t.messages, t.pending} {
		for _, m := range list {
			if m.ContactID == contactID {
				out = append(out, m)
			}
		}
	}
	return out
}

// Len returns the number of messages, pending included
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.messages) + len(t.pending)
}
