package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistory_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, newHistory(0).limit)
	assert.Equal(t, DefaultHistoryLimit, newHistory(-3).limit)
	assert.Equal(t, 7, newHistory(7).limit)
}

func TestHistory_EvictsOldestFirst(t *testing.T) {
	h := newHistory(2)
	h.append(Message{Text: "a"})
	h.append(Message{Text: "b"})
	h.append(Message{Text: "c"})

	assert.Equal(t, []Message{{Text: "b"}, {Text: "c"}}, h.snapshot())
	assert.Equal(t, 2, h.len())
}

func TestHistory_SnapshotHasNoSpareCapacity(t *testing.T) {
	h := newHistory(10)
	h.append(Message{Text: "a"})
	snap := h.snapshot()
	assert.Equal(t, len(snap), cap(snap))
}
