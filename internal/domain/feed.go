package domain

type ItemID string

// FeedItem is one entry of the ordered reel feed. Metadata is owned by the
// feed collaborator and never mutated by the engine; the engine only
// annotates cache and readiness state keyed by feed index.
type FeedItem struct {
	ID           ItemID `json:"id"`
	MediaURI     string `json:"mediaUri"`
	ThumbnailURI string `json:"thumbnailUri,omitempty"`
}

// Valid reports whether the item can ever be fetched. An item with an empty
// or unparseable media URI is permanently invalid and is never retried.
func (it FeedItem) Valid() bool {
	return it.ID != "" && it.MediaURI != ""
}
