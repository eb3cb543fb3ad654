package ports

import (
	"context"

	"reelengine/internal/domain"
)

// ViewerStore persists watch positions and viewer playback preferences.
type ViewerStore interface {
	UpsertPosition(ctx context.Context, wp domain.WatchPosition) error
	GetPosition(ctx context.Context, id domain.ItemID) (domain.WatchPosition, error)
	RecentPositions(ctx context.Context, limit int) ([]domain.WatchPosition, error)
	GetSettings(ctx context.Context) (domain.ViewerSettings, bool, error)
	SetSettings(ctx context.Context, s domain.ViewerSettings) error
}
