package switching

// historySize bounds the diagnostic ring. Old entries are dropped.
const historySize = 16

// HistoryItem records one arbitration outcome.
type HistoryItem struct {
	Timestamp int64  `json:"timestamp"` // posix seconds, 0 when the clock was unsynced
	Value     uint8  `json:"value"`     // commanded value, may be a command constant
	Intensity uint8  `json:"intensity"` // actual output intensity after the command
	Source    string `json:"source"`
}

// History is a bounded ring of recent switch commands, kept for diagnostics.
type History struct {
	items []HistoryItem
}

// Add appends an item, dropping the oldest once the ring is full.
func (h *History) Add(item HistoryItem) {
	if len(h.items) >= historySize {
		copy(h.items, h.items[1:])
		h.items = h.items[:historySize-1]
	}
	h.items = append(h.items, item)
}

// Items returns the entries, oldest first.
func (h *History) Items() []HistoryItem {
	out := make([]HistoryItem, len(h.items))
	copy(out, h.items)
	return out
}
