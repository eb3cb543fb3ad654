package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reelengine/internal/domain"
	"reelengine/internal/domain/ports"
	"reelengine/internal/metrics"
	"reelengine/internal/playback"
	"reelengine/internal/prefetch"
)

// Controller orchestrates the feed session: it turns viewport and gesture
// signals into window shifts, slot preparation and swaps. All cache and slot
// mutation funnels through here, so the rest of the system never races a
// fetch completion against a navigation.
type Controller struct {
	cache  *prefetch.Cache
	slots  *playback.Manager
	feed   ports.FeedSource
	store  ports.ViewerStore
	likes  ports.LikeSink
	events EventSink
	logger *slog.Logger

	tapWindow        time.Duration
	placeholderDelay time.Duration
	visibleThreshold float64
	sampleInterval   time.Duration

	// navMu serializes the prepare/await/swap pipeline. Without it two
	// overlapping navigations can both target the inactive slot: the older
	// one rebinds it between the newer one's prepare and swap, and the swap
	// then completes against the wrong item's media.
	navMu sync.Mutex

	mu             sync.Mutex
	items          []domain.FeedItem
	current        int
	navGen         uint64
	dragging       bool
	focused        bool
	manuallyPaused map[int]bool
	liked          map[domain.ItemID]bool
	tapTimer       *time.Timer
	placeholder    *time.Timer
}

// Option configures a Controller.
type Option func(*Controller)

func WithViewerStore(s ports.ViewerStore) Option { return func(c *Controller) { c.store = s } }
func WithLikeSink(s ports.LikeSink) Option       { return func(c *Controller) { c.likes = s } }
func WithEventSink(s EventSink) Option           { return func(c *Controller) { c.events = s } }

func WithTapWindow(d time.Duration) Option { return func(c *Controller) { c.tapWindow = d } }

func WithPlaceholderDelay(d time.Duration) Option {
	return func(c *Controller) { c.placeholderDelay = d }
}

func WithVisibleThreshold(f float64) Option { return func(c *Controller) { c.visibleThreshold = f } }

func WithSampleInterval(d time.Duration) Option {
	return func(c *Controller) { c.sampleInterval = d }
}

func New(cache *prefetch.Cache, slots *playback.Manager, feed ports.FeedSource, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cache:            cache,
		slots:            slots,
		feed:             feed,
		logger:           logger,
		tapWindow:        260 * time.Millisecond,
		placeholderDelay: 350 * time.Millisecond,
		visibleThreshold: 0.5,
		sampleInterval:   5 * time.Second,
		current:          -1,
		focused:          true,
		manuallyPaused:   make(map[int]bool),
		liked:            make(map[domain.ItemID]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEventSink wires the event sink after construction. The sink is created
// by the API layer, which in turn needs the controller.
func (c *Controller) SetEventSink(s EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = s
}

// Start loads the feed and primes playback from index 0.
func (c *Controller) Start(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh replaces the item list wholesale, resets cache and slots and
// re-primes from index 0.
func (c *Controller) Refresh(ctx context.Context) error {
	items, err := c.feed.Items(ctx)
	if err != nil {
		return fmt.Errorf("%w: load feed: %v", domain.ErrNetwork, err)
	}

	c.mu.Lock()
	c.items = items
	c.current = -1
	c.navGen++
	c.manuallyPaused = make(map[int]bool)
	c.liked = make(map[domain.ItemID]bool)
	c.stopTimersLocked()
	c.mu.Unlock()

	// Let any in-flight navigation drain before wiping the slots; it sees
	// the bumped generation and gives way.
	c.navMu.Lock()
	c.slots.Reset()
	c.cache.SetItems(items)
	c.navMu.Unlock()

	c.logger.Info("feed refreshed", slog.Int("items", len(items)))
	if len(items) == 0 {
		return nil
	}
	return c.RequestNavigate(ctx, 0)
}

// RequestNavigate makes index current: shifts the prefetch window, prepares
// the inactive slot and swaps once playback is confirmed. Idempotent when
// the index is already current and playing. A failure surfaces on this index
// only and never blocks navigation to its neighbours.
func (c *Controller) RequestNavigate(ctx context.Context, index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return fmt.Errorf("%w: index %d outside feed", domain.ErrNotFound, index)
	}
	if index == c.current && c.slots.IsPlaying(index) {
		c.mu.Unlock()
		return nil
	}
	c.navGen++
	gen := c.navGen
	c.current = index
	item := c.items[index]
	c.stopPlaceholderLocked()
	c.mu.Unlock()

	metrics.NavigationsTotal.Inc()

	// Exactly one navigation drives the slots at a time. A request overtaken
	// while queueing here must not rebind a slot the winner is swapping to.
	c.navMu.Lock()
	defer c.navMu.Unlock()
	if c.superseded(gen) {
		return nil
	}

	c.recordPosition(ctx)
	c.cache.ShiftWindow(index)

	// A fully cached resource plays from disk for near-instant readiness.
	src := item.MediaURI
	if path, ok := c.cache.LocalResource(index); ok {
		src = path
	}

	slotID, err := c.slots.Prepare(ctx, index, src)
	if err != nil {
		return c.failNavigate(index, err)
	}
	if err := c.slots.AwaitReady(ctx, slotID); err != nil {
		return c.failNavigate(index, err)
	}
	if c.superseded(gen) {
		return nil
	}

	c.publish(Event{Type: EventReady, Index: index, ItemID: string(item.ID)})
	if err := c.slots.SwapTo(ctx, slotID); err != nil {
		return c.failNavigate(index, err)
	}

	c.mu.Lock()
	paused := c.manuallyPaused[index]
	focused := c.focused
	c.mu.Unlock()
	if paused || !focused {
		// An explicitly paused item stays paused when revisited.
		c.slots.PauseActive()
	} else {
		c.cache.NotePlaying(index)
	}

	c.publish(Event{Type: EventSwap, Index: index, ItemID: string(item.ID)})
	c.publishState(index)
	return nil
}

// ReportViewport feeds a scroll/viewability sample. An index commits as
// current once it is at least half visible; while the finger is still
// dragging, loading placeholders stay suppressed.
func (c *Controller) ReportViewport(index int, visible float64, dragging bool) {
	c.mu.Lock()
	c.dragging = dragging
	if dragging {
		c.stopPlaceholderLocked()
		c.mu.Unlock()
		return
	}
	if visible < c.visibleThreshold || index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return
	}
	commit := index != c.current
	c.mu.Unlock()

	if commit {
		go func() {
			if err := c.RequestNavigate(context.Background(), index); err != nil {
				c.logger.Warn("navigate from viewport failed",
					slog.Int("index", index),
					slog.String("err", err.Error()),
				)
			}
		}()
	}
	c.armPlaceholder(index)
}

// armPlaceholder schedules the covering placeholder to appear only if the
// target is still not ready a beat after momentum settles.
func (c *Controller) armPlaceholder(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPlaceholderLocked()
	if c.cache.Tracker().IsReadyOrPlaying(index) || c.slots.IsPlaying(index) {
		return
	}
	c.placeholder = time.AfterFunc(c.placeholderDelay, func() {
		c.mu.Lock()
		stillCurrent := c.current == index && !c.dragging
		c.placeholder = nil
		c.mu.Unlock()
		if stillCurrent && !c.slots.IsPlaying(index) {
			c.publish(Event{Type: EventPlaceholder, Index: index})
		}
	})
}

// Tap is the raw gesture entry point. A second tap inside the window is a
// double-tap (toggle like); otherwise the tap resolves to play/pause after
// the window elapses.
func (c *Controller) Tap() {
	c.mu.Lock()
	if c.tapTimer != nil {
		c.tapTimer.Stop()
		c.tapTimer = nil
		c.mu.Unlock()
		c.RequestToggleLike(context.Background())
		return
	}
	c.tapTimer = time.AfterFunc(c.tapWindow, func() {
		c.mu.Lock()
		c.tapTimer = nil
		c.mu.Unlock()
		c.RequestTogglePlay()
	})
	c.mu.Unlock()
}

// RequestTogglePlay toggles playback of the current item. An explicit pause
// is remembered per index so revisiting does not auto-resume.
func (c *Controller) RequestTogglePlay() {
	c.mu.Lock()
	index := c.current
	if index < 0 {
		c.mu.Unlock()
		return
	}
	if c.slots.IsPlaying(index) {
		c.slots.PauseActive()
		c.manuallyPaused[index] = true
	} else {
		delete(c.manuallyPaused, index)
		c.slots.ResumeActive()
		c.cache.NotePlaying(index)
	}
	c.mu.Unlock()
	c.publishState(index)
}

// RequestToggleLike flips the like state of the current item and reports it
// to the sink without waiting. Likes never affect playback.
func (c *Controller) RequestToggleLike(ctx context.Context) {
	c.mu.Lock()
	index := c.current
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return
	}
	id := c.items[index].ID
	liked := !c.liked[id]
	c.liked[id] = liked
	c.mu.Unlock()

	metrics.LikesTotal.Inc()
	if c.likes != nil {
		go func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c.likes.LikeToggled(sctx, id, liked)
		}()
	}
	c.publish(Event{Type: EventLike, Index: index, ItemID: string(id), Liked: liked})
}

// SetFocus reacts to the screen gaining or losing focus. Regaining focus
// resumes only items the viewer did not pause themselves.
func (c *Controller) SetFocus(focused bool) {
	c.mu.Lock()
	c.focused = focused
	index := c.current
	manual := index >= 0 && c.manuallyPaused[index]
	c.mu.Unlock()
	if index < 0 {
		return
	}
	if !focused {
		c.slots.PauseActive()
	} else if !manual {
		c.slots.ResumeActive()
	}
	c.publishState(index)
}

// CurrentPlaybackState reports the UI-facing state for one index.
func (c *Controller) CurrentPlaybackState(index int) domain.PlaybackState {
	st := domain.PlaybackState{Index: index}
	st.Playing = c.slots.IsPlaying(index)
	st.Ready = st.Playing || c.cache.Tracker().IsReadyOrPlaying(index)
	if !st.Ready {
		if id, ok := c.slots.SlotFor(index); ok && c.slots.State(id) == playback.SlotReady {
			st.Ready = true
		}
	}
	if err := c.cache.Tracker().FailureReason(index); err != nil {
		st.Error = err.Error()
	}
	return st
}

// CurrentIndex returns the committed index, or -1 before the first
// navigation.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Liked reports the in-session like state for an item.
func (c *Controller) Liked(id domain.ItemID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liked[id]
}

// Run samples the active playback position into the viewer store until ctx
// is cancelled. Store writes are best-effort.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.recordPosition(context.Background())
			return
		case <-ticker.C:
			c.recordPosition(ctx)
		}
	}
}

func (c *Controller) recordPosition(ctx context.Context) {
	if c.store == nil {
		return
	}
	index, pos, dur, ok := c.slots.ActivePosition()
	if !ok || pos <= 0 {
		return
	}
	c.mu.Lock()
	var id domain.ItemID
	if index >= 0 && index < len(c.items) {
		id = c.items[index].ID
	}
	c.mu.Unlock()
	if id == "" {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	wp := domain.WatchPosition{
		ItemID:    id,
		Index:     index,
		Position:  pos,
		Duration:  dur,
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.store.UpsertPosition(wctx, wp); err != nil {
		c.logger.Debug("watch position upsert failed",
			slog.String("item", string(id)),
			slog.String("err", err.Error()),
		)
	}
}

func (c *Controller) failNavigate(index int, cause error) error {
	c.cache.Tracker().Fail(index, cause)
	c.logger.Error("navigation failed",
		slog.Int("index", index),
		slog.String("err", cause.Error()),
	)
	c.publish(Event{Type: EventError, Index: index, Reason: cause.Error()})
	c.publishState(index)
	return cause
}

func (c *Controller) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.navGen
}

func (c *Controller) publish(ev Event) {
	c.mu.Lock()
	sink := c.events
	c.mu.Unlock()
	if sink != nil {
		sink.Publish(ev)
	}
}

func (c *Controller) publishState(index int) {
	st := c.CurrentPlaybackState(index)
	c.publish(Event{Type: EventState, Index: index, State: &st})
}

func (c *Controller) stopPlaceholderLocked() {
	if c.placeholder != nil {
		c.placeholder.Stop()
		c.placeholder = nil
	}
}

func (c *Controller) stopTimersLocked() {
	c.stopPlaceholderLocked()
	if c.tapTimer != nil {
		c.tapTimer.Stop()
		c.tapTimer = nil
	}
}
