// Package camera derives per-eye camera matrices from the head pose.
package camera

import (
	"math"
	"sync/atomic"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/koruxr/xr"
)

// Viewport is the part of a swapchain image an eye renders to
type Viewport struct {
	X, Y          uint32
	Width, Height uint32
	Layer         uint32
}

// Eye holds the matrices of one eye
type Eye struct {
	View       glm.Mat4
	Projection glm.Mat4
	Viewport   Viewport

	// Pose and Fov the matrices were derived from,
	// the platform wants them back with the rendered image
	Pose xr.Pose
	Fov  xr.Fov
}

// Parameters are the camera matrices of one frame. They are replaced
// as a whole every frame and never modified once published.
type Parameters struct {
	Frame uint64
	Eyes  []Eye
}

// Projection builds an asymmetric perspective projection from
// field of view angles.
func Projection(fov xr.Fov, near, far float32) glm.Mat4 {
	left := float32(math.Tan(float64(fov.Left))) * near
	right := float32(math.Tan(float64(fov.Right))) * near
	down := float32(math.Tan(float64(fov.Down))) * near
	up := float32(math.Tan(float64(fov.Up))) * near
	return glm.Frustum(left, right, down, up, near, far)
}

// Viewports lays out eyes in a swapchain of the given descriptor
func Viewports(desc xr.SwapchainDescriptor, eyes int) []Viewport {
	viewports := make([]Viewport, eyes)
	if eyes == 0 {
		return viewports
	}
	switch desc.Layout {
	case xr.LayoutSingle:
		width := desc.Width / uint32(eyes)
		for i := range viewports {
			viewports[i] = Viewport{X: uint32(i) * width, Width: width, Height: desc.Height}
		}
	default:
		for i := range viewports {
			viewports[i] = Viewport{Width: desc.Width, Height: desc.Height, Layer: uint32(i)}
		}
	}
	return viewports
}

// Store publishes the current Parameters to any number of readers
type Store struct {
	current atomic.Pointer[Parameters]
}

// Current returns the latest parameters, nil before the first valid head pose
func (s *Store) Current() *Parameters {
	return s.current.Load()
}

func (s *Store) publish(p *Parameters) {
	s.current.Store(p)
}
