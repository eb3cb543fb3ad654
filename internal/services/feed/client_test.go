package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"reelengine/internal/domain"
)

func TestItemsParsesAndFiltersFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"id": "a", "mediaUri": "https://cdn/a.mp4", "thumbnailUri": "https://cdn/a.jpg"},
				{"id": "", "mediaUri": "https://cdn/broken.mp4"},
				{"id": "b", "mediaUri": "https://cdn/b.mp4"},
			},
		})
	}))
	defer srv.Close()

	items, err := NewClient(srv.URL, srv.Client(), nil).Items(context.Background())
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (invalid entry dropped)", len(items))
	}
	if items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", items)
	}
	if items[0].ThumbnailURI != "https://cdn/a.jpg" {
		t.Fatalf("thumbnail lost: %+v", items[0])
	}
}

func TestItemsClassifiesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client(), nil).Items(context.Background())
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}

func TestItemsClassifiesMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client(), nil).Items(context.Background())
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestLikeToggledPostsPayload(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/likes" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body struct {
			ItemID string `json:"itemId"`
			Liked  bool   `json:"liked"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got.Store(body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	NewClient(srv.URL, srv.Client(), nil).LikeToggled(context.Background(), "item-1", true)

	body, ok := got.Load().(struct {
		ItemID string `json:"itemId"`
		Liked  bool   `json:"liked"`
	})
	if !ok {
		t.Fatal("like endpoint was not called")
	}
	if body.ItemID != "item-1" || !body.Liked {
		t.Fatalf("payload = %+v", body)
	}
}
