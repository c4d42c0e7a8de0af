// Package renderer is the rendering subsystem's side of XR. The Bridge
// discovers an XR resource context in the World and binds rendering to
// its swapchain, or to the default window surface when there is none.
package renderer

import (
	"github.com/devblok/koruxr/camera"
	"github.com/devblok/koruxr/xr"
)

// Extent is the size of a surface's images
type Extent struct {
	Width  uint32
	Height uint32
	Layers uint32
}

// Target is the image a frame is rendered into
type Target struct {
	// Image is the native image, zero for surfaces
	// that do not expose their images
	Image xr.Handle

	// Index of the image within its swapchain
	Index uint32

	Extent Extent
}

// Surface is something frames are presented to
type Surface interface {
	// Extent returns the size of the surface's images
	Extent() Extent

	// Acquire returns the next image to render into
	Acquire() (Target, error)

	// Present hands the acquired image over for display.
	// cam is nil until a camera has been derived.
	Present(frame xr.FrameState, cam *camera.Parameters) error

	// Destroy releases the surface and its images
	Destroy()
}

// SurfaceFactory creates the default, non-XR, surface
type SurfaceFactory func() (Surface, error)
