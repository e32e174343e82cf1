package chat

// history is the session's in-memory message list. It keeps messages in
// CreatedAt-ascending order with stable handling of equal timestamps
// (arrival order wins) and guarantees that no message ID appears twice,
// whatever interleaving of history load, local echo, and feed delivery
// produced it.
//
// history is not goroutine-safe: it is owned exclusively by the session's
// event loop.
type history struct {
	msgs []Message
	seen map[string]struct{} // message IDs already in msgs
}

func newHistory() *history {
	return &history{seen: make(map[string]struct{})}
}

// Append inserts a message at its timestamp-ordered position and reports
// whether the list changed. A message whose ID is already present is
// dropped. Equal timestamps sort after existing entries, preserving
// arrival order.
func (h *history) Append(m Message) bool {
	if _, dup := h.seen[m.ID]; dup {
		return false
	}
	h.seen[m.ID] = struct{}{}

	h.msgs = append(h.msgs, m)
	// Walk the new entry backwards past strictly later messages. Feed
	// events almost always arrive in order, so this is usually a no-op.
	for i := len(h.msgs) - 1; i > 0; i-- {
		if !h.msgs[i-1].CreatedAt.After(h.msgs[i].CreatedAt) {
			break
		}
		h.msgs[i-1], h.msgs[i] = h.msgs[i], h.msgs[i-1]
	}
	return true
}

// Contains reports whether a message with the given ID is in the list.
func (h *history) Contains(id string) bool {
	_, ok := h.seen[id]
	return ok
}

// Len returns the number of messages in the list.
func (h *history) Len() int {
	return len(h.msgs)
}

// Messages returns a copy of the list in display order (oldest first).
func (h *history) Messages() []Message {
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}
