package domain

// Window is the contiguous range of feed indices the cache tracks around the
// current position: [Start, Start+Size).
type Window struct {
	Start int `json:"start"`
	Size  int `json:"size"`
}

// WindowFor derives the cache window for a committed index. The window is
// forward-biased: it begins behindMargin positions before the current index,
// clamped to the feed bounds, so that current always lies inside it.
func WindowFor(current, behindMargin, size, feedLen int) Window {
	if size <= 0 || feedLen <= 0 {
		return Window{}
	}
	start := current - behindMargin
	if start < 0 {
		start = 0
	}
	if start+size > feedLen {
		start = feedLen - size
		if start < 0 {
			start = 0
		}
	}
	if size > feedLen {
		size = feedLen
	}
	return Window{Start: start, Size: size}
}

func (w Window) Contains(index int) bool {
	return index >= w.Start && index < w.Start+w.Size
}

// End returns the first index past the window.
func (w Window) End() int { return w.Start + w.Size }

// Distance returns how far outside the window an index lies, 0 if inside.
func (w Window) Distance(index int) int {
	if index < w.Start {
		return w.Start - index
	}
	if index >= w.End() {
		return index - w.End() + 1
	}
	return 0
}
