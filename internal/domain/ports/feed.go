package ports

import (
	"context"

	"reelengine/internal/domain"
)

// FeedSource supplies the canonical ordered item list. Indices are stable
// within one session; Refresh replaces the list wholesale.
type FeedSource interface {
	Items(ctx context.Context) ([]domain.FeedItem, error)
}

// LikeSink receives fire-and-forget like toggles. Delivery failures never
// affect playback correctness.
type LikeSink interface {
	LikeToggled(ctx context.Context, id domain.ItemID, liked bool)
}
