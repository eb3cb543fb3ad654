// Package fetch downloads remote media resources to local cache files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"reelengine/internal/domain"
	"reelengine/internal/domain/ports"
)

const copyChunkSize = 32 << 10

// HTTPFetcher fetches resources over HTTP(S) with optional byte-range limits
// and an optional aggregate bandwidth cap shared by all transfers.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHTTPFetcher builds a fetcher. bytesPerSec <= 0 disables the bandwidth
// cap. A nil client falls back to a client with a 30s overall timeout.
func NewHTTPFetcher(client *http.Client, bytesPerSec int64, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	var limiter *rate.Limiter
	if bytesPerSec > 0 {
		burst := int(bytesPerSec)
		if burst < copyChunkSize {
			burst = copyChunkSize
		}
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	}
	return &HTTPFetcher{client: client, limiter: limiter, logger: logger}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req ports.FetchRequest) (ports.FetchResult, error) {
	if err := validateURI(req.URI); err != nil {
		return ports.FetchResult{}, err
	}
	if req.Dest == "" {
		return ports.FetchResult{}, fmt.Errorf("%w: empty destination", domain.ErrInvalidResource)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URI, nil)
	if err != nil {
		return ports.FetchResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidResource, err)
	}
	if req.Limit > 0 {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=0-%d", req.Limit-1))
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return ports.FetchResult{}, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		// proceed
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ports.FetchResult{}, fmt.Errorf("%w: status %d", domain.ErrInvalidResource, resp.StatusCode)
	default:
		return ports.FetchResult{}, fmt.Errorf("%w: status %d", domain.ErrNetwork, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if req.Limit > 0 && resp.StatusCode == http.StatusOK {
		// Server ignored the range request; cap the read ourselves.
		body = io.LimitReader(resp.Body, req.Limit)
	}

	written, err := f.writeFile(ctx, req.Dest, body)
	if err != nil {
		return ports.FetchResult{}, err
	}

	res := ports.FetchResult{
		Path:     req.Dest,
		Bytes:    written,
		Complete: isComplete(resp, req.Limit, written),
	}
	if f.logger != nil {
		f.logger.Debug("fetch complete",
			slog.String("uri", req.URI),
			slog.Int64("bytes", written),
			slog.Bool("full", res.Complete),
		)
	}
	return res, nil
}

// writeFile streams body into a temp file next to dest and renames on
// success, so a concurrent eviction never observes a half-written file at
// the final path.
func (f *HTTPFetcher) writeFile(ctx context.Context, dest string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	tmp := dest + ".part-" + uuid.NewString()
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			_ = os.Remove(tmp)
			return written, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if f.limiter != nil {
				if err := f.limiter.WaitN(ctx, n); err != nil {
					out.Close()
					_ = os.Remove(tmp)
					return written, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
				}
			}
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				_ = os.Remove(tmp)
				return written, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			_ = os.Remove(tmp)
			return written, fmt.Errorf("%w: %v", domain.ErrNetwork, readErr)
		}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return written, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return written, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	return written, nil
}

func validateURI(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty uri", domain.ErrInvalidResource)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidResource, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", domain.ErrInvalidResource, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidResource)
	}
	return nil
}

// isComplete decides whether the whole resource is now on disk.
func isComplete(resp *http.Response, limit, written int64) bool {
	if resp.StatusCode == http.StatusPartialContent {
		total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		return ok && written >= total
	}
	if limit <= 0 {
		return true
	}
	// Status 200 with a capped read: complete only if the body ended before
	// the cap, or the declared length fits within it.
	if written < limit {
		return true
	}
	return resp.ContentLength > 0 && resp.ContentLength <= limit
}

// parseContentRangeTotal extracts the total size from "bytes start-end/total".
func parseContentRangeTotal(header string) (int64, bool) {
	if header == "" {
		return 0, false
	}
	idx := strings.LastIndexByte(header, '/')
	if idx < 0 || idx+1 >= len(header) {
		return 0, false
	}
	totalStr := header[idx+1:]
	if totalStr == "*" {
		return 0, false
	}
	total, err := strconv.ParseInt(totalStr, 10, 64)
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}

var _ ports.Fetcher = (*HTTPFetcher)(nil)

// Errors returned by Probe.
var errProbeFailed = errors.New("probe failed")

// Probe checks resource existence without transferring the body. Used as the
// coarse readiness heuristic when slot polling times out. Local paths, as
// handed out for fully cached resources, are checked on disk.
func (f *HTTPFetcher) Probe(ctx context.Context, uri string) error {
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		if _, err := os.Stat(uri); err != nil {
			return fmt.Errorf("%w: %v", errProbeFailed, err)
		}
		return nil
	}
	if err := validateURI(uri); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errProbeFailed, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", errProbeFailed, resp.StatusCode)
	}
	return nil
}
