package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"reelengine/internal/domain"
	"reelengine/internal/domain/ports"
)

// rangeServer serves a fixed payload with byte-range support.
func rangeServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHdr := r.Header.Get("Range")
		if rangeHdr == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			_, _ = w.Write(payload)
			return
		}
		// Only "bytes=0-N" is issued by the fetcher.
		spec := strings.TrimPrefix(rangeHdr, "bytes=0-")
		end, err := strconv.Atoi(spec)
		if err != nil {
			http.Error(w, "bad range", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if end >= len(payload) {
			end = len(payload) - 1
		}
		chunk := payload[:end+1]
		w.Header().Set("Content-Range",
			"bytes 0-"+strconv.Itoa(end)+"/"+strconv.Itoa(len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(chunk)
	}))
}

func TestFetchFull(t *testing.T) {
	payload := []byte(strings.Repeat("v", 4096))
	srv := rangeServer(t, payload)
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), 0, nil)
	dest := filepath.Join(t.TempDir(), "item-0.bin")
	res, err := f.Fetch(context.Background(), ports.FetchRequest{URI: srv.URL, Dest: dest})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.Complete {
		t.Fatal("full fetch must report complete")
	}
	if res.Bytes != int64(len(payload)) {
		t.Fatalf("bytes = %d, want %d", res.Bytes, len(payload))
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if len(data) != len(payload) {
		t.Fatalf("dest size = %d, want %d", len(data), len(payload))
	}
}

func TestFetchPartialRange(t *testing.T) {
	payload := []byte(strings.Repeat("v", 4096))
	srv := rangeServer(t, payload)
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), 0, nil)
	dest := filepath.Join(t.TempDir(), "item-1.bin")
	res, err := f.Fetch(context.Background(), ports.FetchRequest{URI: srv.URL, Dest: dest, Limit: 1024})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Complete {
		t.Fatal("1 KiB of a 4 KiB resource must not report complete")
	}
	if res.Bytes != 1024 {
		t.Fatalf("bytes = %d, want 1024", res.Bytes)
	}
}

func TestFetchRangeCoveringWholeResource(t *testing.T) {
	payload := []byte("short")
	srv := rangeServer(t, payload)
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), 0, nil)
	dest := filepath.Join(t.TempDir(), "item-2.bin")
	res, err := f.Fetch(context.Background(), ports.FetchRequest{URI: srv.URL, Dest: dest, Limit: 1024})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.Complete {
		t.Fatal("range larger than the resource must report complete")
	}
}

func TestFetchLimitOnServerWithoutRangeSupport(t *testing.T) {
	payload := []byte(strings.Repeat("x", 2048))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload) // ignores Range
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), 0, nil)
	dest := filepath.Join(t.TempDir(), "item-3.bin")
	res, err := f.Fetch(context.Background(), ports.FetchRequest{URI: srv.URL, Dest: dest, Limit: 512})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Bytes != 512 {
		t.Fatalf("bytes = %d, want capped 512", res.Bytes)
	}
	if res.Complete {
		t.Fatal("capped read of a larger resource must not report complete")
	}
}

func TestFetchClassifiesNotFoundAsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), 0, nil)
	_, err := f.Fetch(context.Background(), ports.FetchRequest{
		URI:  srv.URL,
		Dest: filepath.Join(t.TempDir(), "x"),
	})
	if !errors.Is(err, domain.ErrInvalidResource) {
		t.Fatalf("err = %v, want ErrInvalidResource", err)
	}
}

func TestFetchClassifiesServerErrorAsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), 0, nil)
	_, err := f.Fetch(context.Background(), ports.FetchRequest{
		URI:  srv.URL,
		Dest: filepath.Join(t.TempDir(), "x"),
	})
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}

func TestFetchRejectsMalformedURI(t *testing.T) {
	f := NewHTTPFetcher(nil, 0, nil)
	for _, uri := range []string{"", "ftp://host/x", "http://", ":://bad"} {
		_, err := f.Fetch(context.Background(), ports.FetchRequest{
			URI:  uri,
			Dest: filepath.Join(t.TempDir(), "x"),
		})
		if !errors.Is(err, domain.ErrInvalidResource) {
			t.Fatalf("uri %q: err = %v, want ErrInvalidResource", uri, err)
		}
	}
}

func TestFetchCancelledContext(t *testing.T) {
	payload := []byte(strings.Repeat("v", 1<<20))
	srv := rangeServer(t, payload)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTPFetcher(srv.Client(), 0, nil)
	dest := filepath.Join(t.TempDir(), "item-c.bin")
	_, err := f.Fetch(ctx, ports.FetchRequest{URI: srv.URL, Dest: dest})
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("cancelled fetch must not leave a file at the final path")
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	cases := []struct {
		header string
		want   int64
		ok     bool
	}{
		{"bytes 0-1023/4096", 4096, true},
		{"bytes 0-1023/*", 0, false},
		{"", 0, false},
		{"garbage", 0, false},
	}
	for _, c := range cases {
		got, ok := parseContentRangeTotal(c.header)
		if got != c.want || ok != c.ok {
			t.Fatalf("parseContentRangeTotal(%q) = (%d, %v), want (%d, %v)",
				c.header, got, ok, c.want, c.ok)
		}
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("probe used method %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), 0, nil)
	if err := f.Probe(context.Background(), srv.URL); err != nil {
		t.Fatalf("Probe: %v", err)
	}
}
