package ports

import "context"

// FetchRequest describes one resource transfer. Limit bounds the number of
// bytes fetched (a byte-range request); Limit <= 0 means the whole resource.
type FetchRequest struct {
	URI   string
	Dest  string
	Limit int64
}

type FetchResult struct {
	Path     string
	Bytes    int64
	Complete bool // the entire resource is on disk, not just a prefix
}

// Fetcher downloads remote media resources to local storage. Implementations
// must honor ctx cancellation and remove partial output on failure.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}
