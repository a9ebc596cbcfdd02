package router

// History is a browser-style navigation stack. Pushing after going back
// discards the forward entries.
type History struct {
	entries []string
	index   int
	limit   int
}

// NewHistory returns an empty history keeping at most limit entries. A
// non-positive limit keeps everything.
func NewHistory(limit int) *History {
	return &History{index: -1, limit: limit}
}

func (h *History) Push(path string) {
	h.entries = append(h.entries[:h.index+1], path)
	h.index++
	if h.limit > 0 && len(h.entries) > h.limit {
		drop := len(h.entries) - h.limit
		h.entries = append([]string(nil), h.entries[drop:]...)
		h.index -= drop
	}
}

// Replace overwrites the current entry, pushing when the history is empty.
func (h *History) Replace(path string) {
	if h.index < 0 {
		h.Push(path)
		return
	}
	h.entries[h.index] = path
}

func (h *History) Back() bool {
	if !h.CanGoBack() {
		return false
	}
	h.index--
	return true
}

func (h *History) Forward() bool {
	if !h.CanGoForward() {
		return false
	}
	h.index++
	return true
}

func (h *History) CanGoBack() bool {
	return h.index > 0
}

func (h *History) CanGoForward() bool {
	return h.index >= 0 && h.index < len(h.entries)-1
}

func (h *History) Current() (string, bool) {
	if h.index < 0 {
		return "", false
	}
	return h.entries[h.index], true
}

func (h *History) Len() int {
	return len(h.entries)
}
