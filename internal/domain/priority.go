package domain

// Priority is the prefetch aggressiveness tier for one tracked index.
type Priority int

const (
	PriorityNone       Priority = iota
	PriorityBackground          // small partial fetch, far end of the window
	PriorityHigh                // larger partial fetch, near the current index
	PriorityFull                // download the whole resource
)

var priorityNames = [...]string{"none", "background", "high", "full"}

func (p Priority) String() string {
	if int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return "none"
}
