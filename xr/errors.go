package xr

import (
	"errors"
	"fmt"
)

// Resource creation errors. They are recoverable, the renderer
// falls back to its default surface when it gets one.
var (
	ErrSessionNotReady    = errors.New("xr: session not ready")
	ErrUnsupportedBackend = errors.New("xr: unsupported graphics backend")
	ErrInvalidDescriptor  = errors.New("xr: invalid swapchain descriptor")
	ErrContextExpired     = errors.New("xr: resource context expired")
)

// ErrFrameTimeout is returned by runtimes when a frame wait ran
// past its timeout. Tracking reports it as stale poses.
var ErrFrameTimeout = errors.New("xr: frame wait timed out")

// DanglingSwapchainError is the panic value raised when a resource
// context or rendering context is destroyed while resources created
// from it are still alive. It is a lifetime ordering bug, not an
// error that can be handled.
type DanglingSwapchainError struct {
	// Owner is "resource context" or "rendering context"
	Owner             string
	Swapchains        []uint64
	RenderingContexts int
}

func (e *DanglingSwapchainError) Error() string {
	return fmt.Sprintf("xr: %s destroyed with %d live swapchain(s) %v and %d live rendering context(s)",
		e.Owner, len(e.Swapchains), e.Swapchains, e.RenderingContexts)
}
