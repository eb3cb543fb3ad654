// Package prefetch owns the sliding window of cached feed media around the
// viewer's current position: what to fetch, at which tier, and what to evict.
package prefetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"reelengine/internal/domain"
	"reelengine/internal/domain/ports"
	"reelengine/internal/metrics"
	"reelengine/internal/readiness"
)

type Config struct {
	Dir                  string // local blob directory
	CacheSize            int    // tracked window size in items
	BehindMargin         int    // window positions kept behind current
	Hysteresis           int    // extra positions outside the window before eviction
	BatchTrigger         int    // window offset that fires eager batch loading
	BatchSize            int    // fetches issued per batch escalation
	FullConcurrency      int64  // max simultaneous full downloads
	HighRangeBytes       int64  // partial fetch size near the current index
	BackgroundRangeBytes int64  // partial fetch size for the rest of the window
	HighRadius           int    // |index-current| radius for the High tier
}

func DefaultConfig(dir string) Config {
	return Config{
		Dir:                  dir,
		CacheSize:            10,
		BehindMargin:         2,
		Hysteresis:           2,
		BatchTrigger:         5,
		BatchSize:            5,
		FullConcurrency:      2,
		HighRangeBytes:       300 << 10,
		BackgroundRangeBytes: 200 << 10,
		HighRadius:           3,
	}
}

// entry is the cache's bookkeeping for one tracked feed index.
type entry struct {
	index     int
	item      domain.FeedItem
	priority  domain.Priority
	localPath string
	bytes     int64
	complete  bool
	cancel    context.CancelFunc // non-nil while a fetch is in flight
}

// EntryView is a read-only snapshot of one tracked index.
type EntryView struct {
	Index     int              `json:"index"`
	State     domain.Readiness `json:"state"`
	Priority  domain.Priority  `json:"-"`
	Tier      string           `json:"tier"`
	Bytes     int64            `json:"bytes"`
	Complete  bool             `json:"complete"`
	LocalPath string           `json:"-"`
}

// Snapshot describes the cache for the debug surface and event payloads.
type Snapshot struct {
	Current int              `json:"current"`
	Window  domain.Window    `json:"window"`
	Entries []EntryView      `json:"entries"`
	Bytes   int64            `json:"bytes"`
}

// Cache drives the ResourceFetcher and ReadinessTracker for a window of
// indices around the current position. All entry/readiness mutation funnels
// through its methods; fetches run as background goroutines that report back
// under the cache lock.
type Cache struct {
	cfg     Config
	fetcher ports.Fetcher
	tracker *readiness.Tracker
	logger  *slog.Logger

	fullSlots *semaphore.Weighted

	mu           sync.Mutex
	items        []domain.FeedItem
	entries      map[int]*entry
	window       domain.Window
	current      int
	playing      bool // the current item has begun playing
	firedBatches map[int]bool
	totalBytes   int64
	gen          uint64 // bumped on Reset; stale completions are discarded
}

func NewCache(cfg Config, fetcher ports.Fetcher, tracker *readiness.Tracker, logger *slog.Logger) *Cache {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10
	}
	if cfg.FullConcurrency <= 0 {
		cfg.FullConcurrency = 2
	}
	if cfg.HighRadius <= 0 {
		cfg.HighRadius = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	_ = os.MkdirAll(cfg.Dir, 0o755)
	return &Cache{
		cfg:          cfg,
		fetcher:      fetcher,
		tracker:      tracker,
		logger:       logger,
		fullSlots:    semaphore.NewWeighted(cfg.FullConcurrency),
		entries:      make(map[int]*entry),
		firedBatches: make(map[int]bool),
		current:      -1,
	}
}

// SetItems replaces the feed wholesale and resets all cache state.
func (c *Cache) SetItems(items []domain.FeedItem) {
	c.Reset()
	c.mu.Lock()
	c.items = append([]domain.FeedItem(nil), items...)
	c.mu.Unlock()
}

// Tracker exposes the shared readiness tracker.
func (c *Cache) Tracker() *readiness.Tracker { return c.tracker }

// PriorityFor returns the prefetch tier for an index given the committed
// current index. The next item is promoted to a full download only once the
// current item has actually begun playing.
func (c *Cache) PriorityFor(index, current int) domain.Priority {
	c.mu.Lock()
	playing := c.playing && current == c.current
	c.mu.Unlock()
	return c.priorityFor(index, current, playing)
}

func (c *Cache) priorityFor(index, current int, playing bool) domain.Priority {
	if index == current+1 && playing {
		return domain.PriorityFull
	}
	diff := index - current
	if diff < 0 {
		diff = -diff
	}
	if diff <= c.cfg.HighRadius {
		return domain.PriorityHigh
	}
	return domain.PriorityBackground
}

// ShiftWindow recomputes the cache window for a committed index, issues
// fetches for unrequested in-window indices, retries retryable failures, and
// evicts entries that drifted past the hysteresis margin.
func (c *Cache) ShiftWindow(current int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return
	}
	if current < 0 {
		current = 0
	}
	if current >= len(c.items) {
		current = len(c.items) - 1
	}
	if current != c.current {
		c.playing = false
	}
	c.current = current
	c.window = domain.WindowFor(current, c.cfg.BehindMargin, c.cfg.CacheSize, len(c.items))

	c.evictOutsideLocked()
	c.fillWindowLocked()
	c.maybeBatchEscalateLocked()
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// NotePlaying records that the given index has begun playing. This is the
// signal that promotes index+1 to a full download.
func (c *Cache) NotePlaying(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index != c.current {
		return
	}
	c.playing = true
	next := index + 1
	if next < len(c.items) {
		c.requestLocked(next, domain.PriorityFull)
	}
}

// Entry returns a snapshot for one index, false if the index is untracked.
func (c *Cache) Entry(index int) (EntryView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[index]
	if !ok {
		return EntryView{}, false
	}
	return c.viewLocked(e), true
}

// LocalResource returns the local blob path for an index if the entire
// resource is cached, so playback can skip the network.
func (c *Cache) LocalResource(index int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[index]
	if !ok || !e.complete || e.localPath == "" {
		return "", false
	}
	if c.tracker.Get(index) != domain.Ready {
		return "", false
	}
	return e.localPath, true
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{Current: c.current, Window: c.window, Bytes: c.totalBytes}
	for _, e := range c.entries {
		snap.Entries = append(snap.Entries, c.viewLocked(e))
	}
	return snap
}

// Reset cancels all fetches, removes cached blobs, and clears all state.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.gen++
	for _, e := range c.entries {
		if e.cancel != nil {
			e.cancel()
		}
	}
	paths := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		if e.localPath != "" {
			paths = append(paths, e.localPath)
		}
	}
	c.entries = make(map[int]*entry)
	c.firedBatches = make(map[int]bool)
	c.window = domain.Window{}
	c.current = -1
	c.playing = false
	c.totalBytes = 0
	c.mu.Unlock()

	c.tracker.Reset()
	for _, p := range paths {
		_ = os.Remove(p)
	}
	metrics.CacheEntries.Set(0)
	metrics.CacheBytes.Set(0)
}

// Close stops all background work.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.cancel != nil {
			e.cancel()
		}
	}
}

// ---- internals -------------------------------------------------------------

func (c *Cache) viewLocked(e *entry) EntryView {
	return EntryView{
		Index:     e.index,
		State:     c.tracker.Get(e.index),
		Priority:  e.priority,
		Tier:      e.priority.String(),
		Bytes:     e.bytes,
		Complete:  e.complete,
		LocalPath: e.localPath,
	}
}

// evictOutsideLocked removes entries more than the hysteresis margin outside
// the window. The current index and its successor are never evicted, even
// when the window math would allow it.
func (c *Cache) evictOutsideLocked() {
	for idx, e := range c.entries {
		if idx == c.current || idx == c.current+1 {
			continue
		}
		if c.window.Distance(idx) <= c.cfg.Hysteresis {
			continue
		}
		c.evictLocked(idx, e)
	}
}

func (c *Cache) evictLocked(idx int, e *entry) {
	if e.cancel != nil {
		// Cancel before the file goes away so the fetch never writes into a
		// discarded entry.
		e.cancel()
		e.cancel = nil
	}
	if e.localPath != "" {
		_ = os.Remove(e.localPath)
	}
	c.totalBytes -= e.bytes
	if c.totalBytes < 0 {
		c.totalBytes = 0
	}
	delete(c.entries, idx)
	c.tracker.Mark(idx, domain.NotRequested)
	metrics.EvictionsTotal.Inc()
	metrics.CacheBytes.Set(float64(c.totalBytes))
	c.logger.Debug("cache evict", slog.Int("index", idx))
}

func (c *Cache) fillWindowLocked() {
	for idx := c.window.Start; idx < c.window.End(); idx++ {
		tier := c.priorityFor(idx, c.current, c.playing)
		c.requestLocked(idx, tier)
	}
}

// maybeBatchEscalateLocked eagerly issues the next batch of fetches when the
// committed index crosses a trigger boundary, hiding network lag under fast
// swiping. Each boundary fires at most once per session.
func (c *Cache) maybeBatchEscalateLocked() {
	trigger := c.cfg.BatchTrigger
	if trigger <= 0 || c.current <= 0 || c.current%trigger != 0 {
		return
	}
	if c.firedBatches[c.current] {
		return
	}
	c.firedBatches[c.current] = true

	start := c.current + trigger
	for idx := start; idx < start+c.cfg.BatchSize && idx < len(c.items); idx++ {
		c.requestLocked(idx, domain.PriorityBackground)
	}
	metrics.BatchEscalationsTotal.Inc()
	c.logger.Info("batch escalation",
		slog.Int("current", c.current),
		slog.Int("from", start),
		slog.Int("count", c.cfg.BatchSize),
	)
}

// requestLocked issues a fetch for an index at the given tier if there is
// work to do: unrequested entries, retryable failures, and partial entries
// being promoted to a full download. In-flight indices are left alone.
func (c *Cache) requestLocked(idx int, tier domain.Priority) {
	if idx < 0 || idx >= len(c.items) {
		return
	}
	item := c.items[idx]

	e := c.entries[idx]
	if e == nil {
		e = &entry{index: idx, item: item}
		c.entries[idx] = e
	}
	e.priority = tier
	if e.cancel != nil || e.complete {
		return
	}

	if !item.Valid() {
		if c.tracker.Get(idx) != domain.Failed {
			c.tracker.Fail(idx, domain.ErrInvalidResource)
			metrics.FetchFailuresTotal.WithLabelValues("invalid").Inc()
		}
		return
	}

	switch c.tracker.Get(idx) {
	case domain.NotRequested:
		c.tracker.Mark(idx, domain.Loading)
	case domain.Failed:
		if !domain.Retryable(c.tracker.FailureReason(idx)) {
			return
		}
		c.tracker.Mark(idx, domain.Loading)
	case domain.PartiallyLoaded:
		if tier != domain.PriorityFull {
			return
		}
		// keep PartiallyLoaded while the remainder downloads
	default:
		return
	}

	limit := c.limitFor(tier)
	jobCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	gen := c.gen
	dest := c.blobPath(idx, item)

	metrics.FetchesTotal.WithLabelValues(tier.String()).Inc()
	metrics.InflightFetches.Inc()

	go func() {
		defer cancel()
		c.runFetch(jobCtx, gen, idx, tier, ports.FetchRequest{URI: item.MediaURI, Dest: dest, Limit: limit})
	}()
}

func (c *Cache) limitFor(tier domain.Priority) int64 {
	switch tier {
	case domain.PriorityFull:
		return 0
	case domain.PriorityHigh:
		return c.cfg.HighRangeBytes
	default:
		return c.cfg.BackgroundRangeBytes
	}
}

func (c *Cache) blobPath(idx int, item domain.FeedItem) string {
	return filepath.Join(c.cfg.Dir, fmt.Sprintf("item-%d-%s.media", idx, item.ID))
}

func (c *Cache) runFetch(ctx context.Context, gen uint64, idx int, tier domain.Priority, req ports.FetchRequest) {
	defer metrics.InflightFetches.Dec()

	// Full downloads are capped; extra requests queue here until a slot frees.
	if tier == domain.PriorityFull {
		if err := c.fullSlots.Acquire(ctx, 1); err != nil {
			c.finishFetch(gen, idx, ports.FetchResult{}, err)
			return
		}
		defer c.fullSlots.Release(1)
	}

	res, err := c.fetcher.Fetch(ctx, req)
	c.finishFetch(gen, idx, res, err)
}

func (c *Cache) finishFetch(gen uint64, idx int, res ports.FetchResult, err error) {
	c.mu.Lock()

	if gen != c.gen {
		c.mu.Unlock()
		if res.Path != "" {
			_ = os.Remove(res.Path)
		}
		return
	}

	e, tracked := c.entries[idx]
	if !tracked {
		// Evicted while the fetch was finishing; discard its output.
		c.mu.Unlock()
		if res.Path != "" {
			_ = os.Remove(res.Path)
		}
		return
	}
	e.cancel = nil

	if err != nil {
		c.mu.Unlock()
		c.tracker.Fail(idx, err)
		metrics.FetchFailuresTotal.WithLabelValues(failureKind(err)).Inc()
		// Prefetch failures are silent: the controller surfaces errors only
		// for the current index.
		c.logger.Debug("fetch failed",
			slog.Int("index", idx),
			slog.String("error", err.Error()),
		)
		return
	}

	c.totalBytes += res.Bytes - e.bytes
	if c.totalBytes < 0 {
		c.totalBytes = 0
	}
	e.localPath = res.Path
	e.bytes = res.Bytes
	e.complete = res.Complete
	c.mu.Unlock()

	if res.Complete {
		c.tracker.Mark(idx, domain.Ready)
	} else {
		c.tracker.Mark(idx, domain.PartiallyLoaded)
	}
	metrics.FetchBytesTotal.Add(float64(res.Bytes))
	metrics.CacheBytes.Set(float64(c.totalBytes))
}

func failureKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case !domain.Retryable(err):
		return "invalid"
	default:
		return "network"
	}
}
