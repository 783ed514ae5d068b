package chat

// history is a bounded, append-only window of messages.
//
// Appends only ever write past the end of the current window, so a slice
// handed out by snapshot is never mutated afterwards and can be read
// without holding the room lock.
type history struct {
	limit int
	items []Message
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &history{limit: limit}
}

func (h *history) append(msg Message) {
	if len(h.items) >= h.limit {
		h.items = h.items[len(h.items)-h.limit+1:]
	}
	h.items = append(h.items, msg)
}

func (h *history) snapshot() []Message {
	n := len(h.items)
	return h.items[:n:n]
}

func (h *history) len() int {
	return len(h.items)
}
