// Package playback owns the two playback surfaces and the swap contract
// between them.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reelengine/internal/domain"
	"reelengine/internal/domain/ports"
	"reelengine/internal/metrics"
)

// SlotState is the per-slot FSM state.
type SlotState int

const (
	SlotIdle SlotState = iota
	SlotLoading
	SlotReady
	SlotPlaying
	SlotFailed
)

var slotStateNames = [...]string{"idle", "loading", "ready", "playing", "failed"}

func (s SlotState) String() string {
	if int(s) < len(slotStateNames) {
		return slotStateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ReadinessProbe is the coarse fallback used when slot polling times out
// without a decode error: check that the source exists rather than block the
// UI indefinitely.
type ReadinessProbe func(ctx context.Context, src string) error

type slot struct {
	id         int
	player     ports.Player
	boundIndex int
	src        string
	state      SlotState
	muted      bool
}

// Manager owns exactly two slots for the lifetime of a viewer session. Only
// the manager writes to them; one slot is active (unmuted, eligible to play)
// at any instant and the other is muted and paused.
type Manager struct {
	mu     sync.Mutex
	slots  [2]*slot
	active int

	pollInterval time.Duration
	readyTimeout time.Duration
	probe        ReadinessProbe
	logger       *slog.Logger
}

type Option func(*Manager)

func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

func WithReadyTimeout(d time.Duration) Option {
	return func(m *Manager) { m.readyTimeout = d }
}

func WithReadinessProbe(p ReadinessProbe) Option {
	return func(m *Manager) { m.probe = p }
}

func NewManager(p0, p1 ports.Player, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		pollInterval: 100 * time.Millisecond,
		readyTimeout: 3 * time.Second,
		logger:       logger,
	}
	m.slots[0] = &slot{id: 0, player: p0, boundIndex: -1, muted: true}
	m.slots[1] = &slot{id: 1, player: p1, boundIndex: -1, muted: true}
	for _, opt := range opts {
		opt(m)
	}
	// Both slots start silent; the first swap unmutes one.
	_ = p0.SetMuted(true)
	_ = p1.SetMuted(true)
	return m
}

// Prepare loads src into whichever slot is not currently active. No-op if
// that slot already holds this exact source and is ready.
func (m *Manager) Prepare(ctx context.Context, index int, src string) (int, error) {
	m.mu.Lock()
	s := m.slots[1-m.active]
	if s.boundIndex == index && s.src == src &&
		(s.state == SlotReady || s.state == SlotPlaying) {
		id := s.id
		m.mu.Unlock()
		return id, nil
	}

	// Rebind edge: a slot leaving Playing is silenced and rewound so it never
	// shows a stale last frame when reused. The slot passes through Idle
	// before loading the new source.
	if s.state == SlotPlaying {
		_ = s.player.SetMuted(true)
		s.muted = true
		_ = s.player.Pause()
		_ = s.player.SeekStart()
		m.transitionLocked(s, SlotIdle)
	}
	m.transitionLocked(s, SlotLoading)
	s.boundIndex = index
	s.src = src
	player := s.player
	id := s.id
	m.mu.Unlock()

	if err := player.Load(ctx, src); err != nil {
		m.failSlot(id, err)
		return id, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return id, nil
}

// AwaitReady polls the slot's player until it reports loaded, with a bounded
// wait. On timeout without a decode error it falls back to the coarse
// existence probe instead of blocking the UI.
func (m *Manager) AwaitReady(ctx context.Context, slotID int) error {
	m.mu.Lock()
	s := m.slots[slotID]
	if s.state == SlotReady || s.state == SlotPlaying {
		m.mu.Unlock()
		return nil
	}
	src := s.src
	player := s.player
	m.mu.Unlock()

	deadline := time.After(m.readyTimeout)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		st := player.Status()
		if st.Err != nil {
			m.failSlot(slotID, st.Err)
			return fmt.Errorf("%w: %v", domain.ErrDecode, st.Err)
		}
		if st.Loaded {
			m.markReady(slotID)
			return nil
		}

		select {
		case <-ticker.C:
		case <-deadline:
			if m.probe != nil {
				probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				err := m.probe(probeCtx, src)
				cancel()
				if err == nil {
					m.logger.Warn("slot readiness timeout, trusting probe",
						slog.Int("slot", slotID),
						slog.String("src", src),
					)
					m.markReady(slotID)
					return nil
				}
			}
			return fmt.Errorf("%w: slot %d not ready after %s", domain.ErrTimeout, slotID, m.readyTimeout)
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
		}
	}
}

// SwapTo makes slotID the active surface. Ordering contract: the outgoing
// slot is muted, paused and rewound before the new one is unmuted; the swap
// is reported complete only after the new slot confirms isPlaying with a
// position past zero; until then the caller must keep its covering
// placeholder up.
func (m *Manager) SwapTo(ctx context.Context, slotID int) error {
	start := time.Now()

	m.mu.Lock()
	next := m.slots[slotID]
	if next.state == SlotFailed {
		m.mu.Unlock()
		return fmt.Errorf("%w: slot %d failed", domain.ErrDecode, slotID)
	}
	if prev := m.slots[1-slotID]; prev.state != SlotFailed {
		_ = prev.player.SetMuted(true)
		prev.muted = true
		_ = prev.player.Pause()
		_ = prev.player.SeekStart()
		if prev.state == SlotPlaying {
			m.transitionLocked(prev, SlotIdle)
		}
	} else {
		// A failed slot still gets silenced.
		_ = prev.player.SetMuted(true)
		prev.muted = true
		_ = prev.player.Pause()
	}

	m.active = slotID
	_ = next.player.SetMuted(false)
	next.muted = false
	if err := next.player.Play(); err != nil {
		m.mu.Unlock()
		m.failSlot(slotID, err)
		return fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	player := next.player
	m.mu.Unlock()

	// Confirm actual playback before signalling completion; swapping
	// visibility on request alone flashes the previous item's last frame.
	deadline := time.After(m.readyTimeout)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		st := player.Status()
		if st.Err != nil {
			m.failSlot(slotID, st.Err)
			return fmt.Errorf("%w: %v", domain.ErrDecode, st.Err)
		}
		if st.Playing && st.Position > 0 {
			m.mu.Lock()
			m.transitionLocked(m.slots[slotID], SlotPlaying)
			m.mu.Unlock()
			metrics.SwapsTotal.Inc()
			metrics.SwapDuration.Observe(time.Since(start).Seconds())
			return nil
		}

		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("%w: playback not confirmed after %s", domain.ErrTimeout, m.readyTimeout)
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
		}
	}
}

// PauseActive pauses the active slot's player.
func (m *Manager) PauseActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[m.active]
	if s.state != SlotPlaying {
		return
	}
	_ = s.player.Pause()
	m.transitionLocked(s, SlotReady)
}

// ResumeActive resumes a paused active slot.
func (m *Manager) ResumeActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[m.active]
	if s.state != SlotReady || s.boundIndex < 0 {
		return
	}
	_ = s.player.Play()
	m.transitionLocked(s, SlotPlaying)
}

// ActiveIndex returns the feed index bound to the active slot.
func (m *Manager) ActiveIndex() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[m.active]
	if s.boundIndex < 0 {
		return 0, false
	}
	return s.boundIndex, true
}

// ActiveSlot returns the active slot id.
func (m *Manager) ActiveSlot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SlotFor returns the slot currently bound to index.
func (m *Manager) SlotFor(index int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.boundIndex == index {
			return s.id, true
		}
	}
	return 0, false
}

// State returns the FSM state of a slot.
func (m *Manager) State(slotID int) SlotState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[slotID].state
}

// IsPlaying reports whether the slot bound to index is actually playing.
func (m *Manager) IsPlaying(index int) bool {
	m.mu.Lock()
	var player ports.Player
	for _, s := range m.slots {
		if s.boundIndex == index && s.state == SlotPlaying {
			player = s.player
		}
	}
	m.mu.Unlock()
	if player == nil {
		return false
	}
	return player.Status().Playing
}

// ActivePosition returns the playback position of the active slot.
func (m *Manager) ActivePosition() (index int, pos, dur time.Duration, ok bool) {
	m.mu.Lock()
	s := m.slots[m.active]
	if s.boundIndex < 0 || s.state != SlotPlaying {
		m.mu.Unlock()
		return 0, 0, 0, false
	}
	index = s.boundIndex
	player := s.player
	m.mu.Unlock()

	st := player.Status()
	return index, st.Position, st.Duration, true
}

// Muted reports the mute flag of a slot.
func (m *Manager) Muted(slotID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[slotID].muted
}

// Reset silences and rewinds both slots and returns them to Idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		_ = s.player.SetMuted(true)
		s.muted = true
		_ = s.player.Pause()
		_ = s.player.SeekStart()
		s.boundIndex = -1
		s.src = ""
		if s.state != SlotIdle {
			m.transitionLocked(s, SlotIdle)
		}
	}
	m.active = 0
}

// Close releases both player handles.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		_ = s.player.Close()
	}
}

func (m *Manager) markReady(slotID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[slotID]
	if s.state == SlotLoading {
		m.transitionLocked(s, SlotReady)
	}
}

// failSlot silences a slot that reported an error and marks it Failed. The
// covering placeholder stays up until the viewer navigates away.
func (m *Manager) failSlot(slotID int, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[slotID]
	_ = s.player.SetMuted(true)
	s.muted = true
	_ = s.player.Pause()
	m.transitionLocked(s, SlotFailed)
	m.logger.Error("slot failed",
		slog.Int("slot", slotID),
		slog.Int("index", s.boundIndex),
		slog.String("error", cause.Error()),
	)
}

func (m *Manager) transitionLocked(s *slot, to SlotState) {
	from := s.state
	s.state = to
	metrics.SlotTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	m.logger.Debug("slot state transition",
		slog.Int("slot", s.id),
		slog.Int("index", s.boundIndex),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}
