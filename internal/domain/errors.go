package domain

import "errors"

var ErrNotFound = errors.New("not found")

// Failure taxonomy for fetch and playback errors.
var (
	// ErrNetwork: the resource was unreachable or the transfer timed out.
	// Retryable on the next window pass.
	ErrNetwork = errors.New("network failure")
	// ErrDecode: the resource was fetched but the player cannot play it.
	ErrDecode = errors.New("decode failure")
	// ErrInvalidResource: the item has no usable media URI. Never retried.
	ErrInvalidResource = errors.New("invalid resource")
	// ErrTimeout: a bounded readiness wait expired.
	ErrTimeout = errors.New("timeout")
)

// Retryable reports whether a failed fetch may be reissued when its index
// re-enters the window. Invalid resources cannot become valid.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrInvalidResource)
}
