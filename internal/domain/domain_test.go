package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestWindowFor(t *testing.T) {
	cases := []struct {
		current, behind, size, feedLen int
		wantStart, wantSize            int
	}{
		{0, 2, 10, 20, 0, 10},
		{1, 2, 10, 20, 0, 10},
		{5, 2, 10, 20, 3, 10},
		{18, 2, 10, 20, 10, 10},
		{3, 2, 10, 6, 0, 6}, // feed shorter than window
		{0, 2, 10, 0, 0, 0},
	}
	for _, c := range cases {
		w := WindowFor(c.current, c.behind, c.size, c.feedLen)
		if w.Start != c.wantStart || w.Size != c.wantSize {
			t.Fatalf("WindowFor(%d,%d,%d,%d) = %+v, want start=%d size=%d",
				c.current, c.behind, c.size, c.feedLen, w, c.wantStart, c.wantSize)
		}
		if w.Size > 0 && !w.Contains(c.current) {
			t.Fatalf("window %+v does not contain current %d", w, c.current)
		}
	}
}

func TestWindowDistance(t *testing.T) {
	w := Window{Start: 3, Size: 10}
	if d := w.Distance(5); d != 0 {
		t.Fatalf("Distance(5) = %d, want 0", d)
	}
	if d := w.Distance(0); d != 3 {
		t.Fatalf("Distance(0) = %d, want 3", d)
	}
	if d := w.Distance(13); d != 1 {
		t.Fatalf("Distance(13) = %d, want 1", d)
	}
	if d := w.Distance(15); d != 3 {
		t.Fatalf("Distance(15) = %d, want 3", d)
	}
}

func TestCanTransition(t *testing.T) {
	allow := [][2]Readiness{
		{NotRequested, Loading},
		{Loading, PartiallyLoaded},
		{Loading, Ready},
		{PartiallyLoaded, Ready},
		{Loading, Failed},
		{Ready, Failed}, // decode error after load
		{Failed, Loading},
		{Ready, NotRequested},
		{Failed, NotRequested},
		{Ready, Ready},
	}
	deny := [][2]Readiness{
		{Ready, Loading},
		{Ready, PartiallyLoaded},
		{Failed, Ready},
		{PartiallyLoaded, Loading},
	}
	for _, c := range allow {
		if !CanTransition(c[0], c[1]) {
			t.Fatalf("CanTransition(%s, %s) = false, want true", c[0], c[1])
		}
	}
	for _, c := range deny {
		if CanTransition(c[0], c[1]) {
			t.Fatalf("CanTransition(%s, %s) = true, want false", c[0], c[1])
		}
	}
}

func TestReadinessString(t *testing.T) {
	if Ready.String() != "ready" {
		t.Fatalf("Ready.String() = %q", Ready.String())
	}
	if NotRequested.String() != "notRequested" {
		t.Fatalf("NotRequested.String() = %q", NotRequested.String())
	}
	if got := Readiness(42).String(); got != "unknown(42)" {
		t.Fatalf("Readiness(42).String() = %q", got)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
	if !Retryable(ErrNetwork) {
		t.Fatal("network failure must be retryable")
	}
	if !Retryable(fmt.Errorf("%w: connection reset", ErrNetwork)) {
		t.Fatal("wrapped network failure must be retryable")
	}
	if Retryable(fmt.Errorf("%w: empty uri", ErrInvalidResource)) {
		t.Fatal("invalid resource must not be retryable")
	}
	if !Retryable(errors.New("opaque")) {
		t.Fatal("unclassified errors are retryable")
	}
}

func TestFeedItemValid(t *testing.T) {
	if !(FeedItem{ID: "a", MediaURI: "https://cdn/x.mp4"}).Valid() {
		t.Fatal("item with id and uri must be valid")
	}
	if (FeedItem{ID: "a"}).Valid() {
		t.Fatal("item without media uri must be invalid")
	}
	if (FeedItem{MediaURI: "https://cdn/x.mp4"}).Valid() {
		t.Fatal("item without id must be invalid")
	}
}
