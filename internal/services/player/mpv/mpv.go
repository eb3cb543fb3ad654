// Package mpv drives a headless mpv process over its JSON IPC socket,
// exposing it as a ports.Player so the engine can run end to end without a
// mobile UI surface.
package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"reelengine/internal/domain"
	"reelengine/internal/domain/ports"
)

const (
	connectRetryInterval = 100 * time.Millisecond
	connectTimeout       = 5 * time.Second
	commandTimeout       = 2 * time.Second
)

// Player is one mpv process bound to one playback surface. Safe for
// concurrent use.
type Player struct {
	socketPath string
	cmd        *exec.Cmd
	conn       net.Conn
	logger     *slog.Logger

	wmu sync.Mutex // serializes socket writes

	mu      sync.Mutex
	pending map[int64]chan ipcResponse
	reqID   int64
	loaded  bool
	lastErr error
	closed  bool
}

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type ipcResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
	Event     string          `json:"event"`
	Reason    string          `json:"reason"`
}

// New launches mpv with its IPC server on socketPath and connects to it.
// The surface starts idle, muted and paused.
func New(ctx context.Context, binary, socketPath string, logger *slog.Logger) (*Player, error) {
	if binary == "" {
		binary = "mpv"
	}
	if logger == nil {
		logger = slog.Default()
	}
	_ = os.Remove(socketPath)

	cmd := exec.Command(binary,
		"--idle=yes",
		"--no-terminal",
		"--vo=null",
		"--mute=yes",
		"--pause=yes",
		"--input-ipc-server="+socketPath,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	conn, err := dialWithRetry(ctx, socketPath)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("connect mpv ipc: %w", err)
	}

	p := &Player{
		socketPath: socketPath,
		cmd:        cmd,
		conn:       conn,
		logger:     logger,
		pending:    make(map[int64]chan ipcResponse),
	}
	go p.readLoop()
	return p, nil
}

func dialWithRetry(ctx context.Context, socketPath string) (net.Conn, error) {
	deadline := time.Now().Add(connectTimeout)
	for {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryInterval):
		}
	}
}

// readLoop dispatches command replies to their waiters and folds playback
// events into the status fields.
func (p *Player) readLoop() {
	dec := json.NewDecoder(p.conn)
	for {
		var resp ipcResponse
		if err := dec.Decode(&resp); err != nil {
			p.mu.Lock()
			if !p.closed {
				p.lastErr = fmt.Errorf("%w: ipc connection lost: %v", domain.ErrDecode, err)
			}
			for id, ch := range p.pending {
				close(ch)
				delete(p.pending, id)
			}
			p.mu.Unlock()
			return
		}

		if resp.Event != "" {
			p.handleEvent(resp)
			continue
		}
		p.mu.Lock()
		if ch, ok := p.pending[resp.RequestID]; ok {
			delete(p.pending, resp.RequestID)
			ch <- resp
		}
		p.mu.Unlock()
	}
}

func (p *Player) handleEvent(resp ipcResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch resp.Event {
	case "file-loaded":
		p.loaded = true
		p.lastErr = nil
	case "end-file":
		if resp.Reason == "error" {
			p.loaded = false
			p.lastErr = fmt.Errorf("%w: mpv could not play the stream", domain.ErrDecode)
		}
	}
}

func (p *Player) command(args ...any) (json.RawMessage, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("mpv: player closed")
	}
	p.reqID++
	id := p.reqID
	ch := make(chan ipcResponse, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	payload, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, err
	}
	payload = append(payload, '\n')

	p.wmu.Lock()
	_, err = p.conn.Write(payload)
	p.wmu.Unlock()
	if err != nil {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: ipc write: %v", domain.ErrNetwork, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errors.New("mpv: connection closed")
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("mpv: %s", resp.Error)
		}
		return resp.Data, nil
	case <-time.After(commandTimeout):
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: mpv command timed out", domain.ErrTimeout)
	}
}

func (p *Player) setProperty(name string, value any) error {
	_, err := p.command("set_property", name, value)
	return err
}

func (p *Player) getProperty(name string) (json.RawMessage, error) {
	return p.command("get_property", name)
}

// Load replaces the current file with src. Playback stays paused until Play.
func (p *Player) Load(ctx context.Context, src string) error {
	p.mu.Lock()
	p.loaded = false
	p.lastErr = nil
	p.mu.Unlock()

	if err := p.setProperty("pause", true); err != nil {
		return err
	}
	if _, err := p.command("loadfile", src, "replace"); err != nil {
		return fmt.Errorf("%w: loadfile: %v", domain.ErrDecode, err)
	}
	return nil
}

func (p *Player) Play() error {
	return p.setProperty("pause", false)
}

func (p *Player) Pause() error {
	return p.setProperty("pause", true)
}

func (p *Player) SeekStart() error {
	_, err := p.command("seek", 0, "absolute")
	return err
}

func (p *Player) SetMuted(muted bool) error {
	return p.setProperty("mute", muted)
}

// Status assembles a snapshot from mpv properties. Property errors while a
// file is still loading are normal and reported as not-loaded rather than
// failures.
func (p *Player) Status() ports.PlayerStatus {
	p.mu.Lock()
	loaded := p.loaded
	lastErr := p.lastErr
	p.mu.Unlock()

	st := ports.PlayerStatus{Loaded: loaded, Err: lastErr}
	if !loaded || lastErr != nil {
		return st
	}

	if raw, err := p.getProperty("pause"); err == nil {
		var paused bool
		if json.Unmarshal(raw, &paused) == nil {
			st.Playing = !paused
		}
	}
	if raw, err := p.getProperty("time-pos"); err == nil {
		var pos float64
		if json.Unmarshal(raw, &pos) == nil {
			st.Position = time.Duration(pos * float64(time.Second))
		}
	}
	if raw, err := p.getProperty("duration"); err == nil {
		var dur float64
		if json.Unmarshal(raw, &dur) == nil {
			st.Duration = time.Duration(dur * float64(time.Second))
		}
	}
	return st
}

// Close shuts the mpv process down and removes the socket.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	_, _ = p.command("quit")

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	_ = p.conn.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = p.cmd.Process.Kill()
		<-done
	}
	_ = os.Remove(p.socketPath)
	return nil
}
