// Package feed talks to the external feed collaborator that owns item order
// and metadata. The engine only reads the ordered list and reports likes.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"reelengine/internal/domain"
)

// Client fetches the ordered feed and delivers like toggles. It implements
// ports.FeedSource and ports.LikeSink.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

type feedItemDTO struct {
	ID           string `json:"id"`
	MediaURI     string `json:"mediaUri"`
	ThumbnailURI string `json:"thumbnailUri,omitempty"`
}

type feedResponse struct {
	Items []feedItemDTO `json:"items"`
}

// Items returns the canonical ordered item list. Entries without an id or
// media URI are dropped rather than poisoning the window with unfetchable
// indices.
func (c *Client) Items(ctx context.Context) ([]domain.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/items", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build feed request: %v", domain.ErrInvalidResource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: feed request: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned %s", domain.ErrNetwork, resp.Status)
	}

	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", domain.ErrDecode, err)
	}

	items := make([]domain.FeedItem, 0, len(body.Items))
	for _, dto := range body.Items {
		item := domain.FeedItem{
			ID:           domain.ItemID(dto.ID),
			MediaURI:     dto.MediaURI,
			ThumbnailURI: dto.ThumbnailURI,
		}
		if !item.Valid() {
			c.logger.Warn("dropping invalid feed item", slog.String("id", dto.ID))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// LikeToggled reports a like flip to the collaborator. Failures are logged
// and swallowed; likes never gate playback.
func (c *Client) LikeToggled(ctx context.Context, id domain.ItemID, liked bool) {
	payload, err := json.Marshal(map[string]any{"itemId": string(id), "liked": liked})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/likes", bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("like delivery failed",
			slog.String("item", string(id)),
			slog.String("err", err.Error()),
		)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("like delivery rejected",
			slog.String("item", string(id)),
			slog.String("status", resp.Status),
		)
	}
}
