package ports

import (
	"context"
	"time"
)

// PlayerStatus is a snapshot of the native playback surface.
type PlayerStatus struct {
	Loaded   bool
	Playing  bool
	Position time.Duration
	Duration time.Duration
	Err      error
}

// Player is an opaque native playback surface. The engine depends only on
// this capability set, never on a concrete media framework.
type Player interface {
	Load(ctx context.Context, src string) error
	Play() error
	Pause() error
	SeekStart() error
	SetMuted(muted bool) error
	Status() PlayerStatus
	Close() error
}
