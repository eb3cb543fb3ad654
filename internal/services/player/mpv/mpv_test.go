package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reelengine/internal/domain"
)

// fakeIPC speaks just enough of the mpv JSON IPC protocol: it answers every
// command with success and emits a file-loaded event after loadfile.
type fakeIPC struct {
	mu    sync.Mutex
	props map[string]any
	fail  map[string]bool // commands answered with an error
}

func newFakeIPC() *fakeIPC {
	return &fakeIPC{
		props: map[string]any{
			"pause":    true,
			"mute":     true,
			"time-pos": 0.0,
			"duration": 15.0,
		},
		fail: make(map[string]bool),
	}
}

func (f *fakeIPC) serve(t *testing.T, conn net.Conn) {
	t.Helper()
	enc := json.NewEncoder(conn)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req ipcRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || len(req.Command) == 0 {
			continue
		}
		name, _ := req.Command[0].(string)

		f.mu.Lock()
		if f.fail[name] {
			f.mu.Unlock()
			_ = enc.Encode(ipcResponse{Error: "error running command", RequestID: req.RequestID})
			continue
		}
		resp := ipcResponse{Error: "success", RequestID: req.RequestID}
		switch name {
		case "set_property":
			key, _ := req.Command[1].(string)
			f.props[key] = req.Command[2]
		case "get_property":
			key, _ := req.Command[1].(string)
			raw, _ := json.Marshal(f.props[key])
			resp.Data = raw
		}
		f.mu.Unlock()
		_ = enc.Encode(resp)

		if name == "loadfile" {
			_ = enc.Encode(ipcResponse{Event: "file-loaded"})
		}
		if name == "quit" {
			return
		}
	}
}

func newTestPlayer(t *testing.T) (*Player, *fakeIPC) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	ipc := newFakeIPC()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ipc.serve(t, conn)
		_ = conn.Close()
	}()

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	p := &Player{
		socketPath: socket,
		conn:       conn,
		logger:     nil,
		pending:    make(map[int64]chan ipcResponse),
	}
	go p.readLoop()
	t.Cleanup(func() { _ = conn.Close() })
	return p, ipc
}

func waitLoaded(t *testing.T, p *Player) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.Status().Loaded {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("player never reported loaded")
}

func TestLoadPausesAndReportsLoaded(t *testing.T) {
	p, ipc := newTestPlayer(t)
	if err := p.Load(context.Background(), "https://cdn/clip.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	waitLoaded(t, p)

	ipc.mu.Lock()
	paused, _ := ipc.props["pause"].(bool)
	ipc.mu.Unlock()
	if !paused {
		t.Fatal("Load must leave the surface paused")
	}
}

func TestPlayPauseMuteDriveProperties(t *testing.T) {
	p, ipc := newTestPlayer(t)
	if err := p.Load(context.Background(), "x.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	waitLoaded(t, p)

	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.SetMuted(false); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}
	ipc.mu.Lock()
	paused, _ := ipc.props["pause"].(bool)
	muted, _ := ipc.props["mute"].(bool)
	ipc.mu.Unlock()
	if paused || muted {
		t.Fatalf("props after play/unmute: pause=%v mute=%v", paused, muted)
	}

	st := p.Status()
	if !st.Playing {
		t.Fatalf("status = %+v, want playing", st)
	}
	if st.Duration != 15*time.Second {
		t.Fatalf("duration = %v, want 15s", st.Duration)
	}
}

func TestStreamErrorSurfacesAsDecodeFailure(t *testing.T) {
	p, ipc := newTestPlayer(t)
	ipc.mu.Lock()
	ipc.fail["loadfile"] = true
	ipc.mu.Unlock()

	err := p.Load(context.Background(), "broken.mp4")
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestCommandTimesOutWithoutReply(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Swallow input, never reply.
		buf := make([]byte, 1024)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	p := &Player{conn: conn, pending: make(map[int64]chan ipcResponse)}
	go p.readLoop()

	if err := p.Play(); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
