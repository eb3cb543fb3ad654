package domain

import "time"

// PlaybackState is the UI-facing summary for one feed index, driving
// spinner/placeholder/error visuals.
type PlaybackState struct {
	Index   int    `json:"index"`
	Ready   bool   `json:"ready"`
	Playing bool   `json:"playing"`
	Error   string `json:"error,omitempty"`
}

// WatchPosition records how far into an item the viewer got.
type WatchPosition struct {
	ItemID    ItemID        `json:"itemId"`
	Index     int           `json:"index"`
	Position  time.Duration `json:"position"`
	Duration  time.Duration `json:"duration"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ViewerSettings are per-viewer playback preferences persisted across
// sessions.
type ViewerSettings struct {
	Autoplay bool `json:"autoplay"`
	Muted    bool `json:"muted"`
}

func DefaultViewerSettings() ViewerSettings {
	return ViewerSettings{Autoplay: true, Muted: false}
}
