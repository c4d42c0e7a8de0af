package xr

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/device"
)

// Layout is how eyes are arranged in swapchain images
type Layout int

// Swapchain layouts
const (
	// LayoutPerEye gives every eye its own array layer
	LayoutPerEye Layout = iota

	// LayoutSingle puts all eyes side by side in one layer
	LayoutSingle
)

func (l Layout) String() string {
	switch l {
	case LayoutPerEye:
		return "per-eye"
	case LayoutSingle:
		return "single"
	}
	return "invalid"
}

// ParseLayout returns the Layout for a name as used in configuration
func ParseLayout(name string) (Layout, error) {
	switch name {
	case "per-eye", "array":
		return LayoutPerEye, nil
	case "single", "side-by-side":
		return LayoutSingle, nil
	}
	return 0, fmt.Errorf("unknown swapchain layout %q", name)
}

// SwapchainDescriptor describes the images of a swapchain.
// Width and Height are the size of one array layer.
type SwapchainDescriptor struct {
	Width       uint32
	Height      uint32
	Format      device.Format
	Layout      Layout
	SampleCount uint32

	// ArrayLayers is filled in by the resource context from the layout
	ArrayLayers uint32
}

// DefaultSwapchainDescriptor sizes a swapchain after the recommended
// view sizes for the given layout.
func DefaultSwapchainDescriptor(views []View, format device.Format, layout Layout) SwapchainDescriptor {
	desc := SwapchainDescriptor{
		Format:      format,
		Layout:      layout,
		SampleCount: 1,
	}
	for _, v := range views {
		if v.RecommendedHeight > desc.Height {
			desc.Height = v.RecommendedHeight
		}
		switch layout {
		case LayoutSingle:
			desc.Width += v.RecommendedWidth
		default:
			if v.RecommendedWidth > desc.Width {
				desc.Width = v.RecommendedWidth
			}
		}
	}
	return desc
}

// RenderingContext is a graphics binding created by a ResourceContext.
// It must be destroyed after every swapchain created with it and
// before its ResourceContext.
type RenderingContext struct {
	id      uint64
	context *ResourceContext
	binding device.Binding

	// guarded by context.mutex
	swapchains int
	destroyed  bool
}

// Backend the context renders with
func (rc *RenderingContext) Backend() device.Backend {
	return rc.binding.Backend
}

// Binding returns the native graphics handles negotiated with the platform
func (rc *RenderingContext) Binding() device.Binding {
	return rc.binding
}

// Context returns the ResourceContext the rendering context belongs to
func (rc *RenderingContext) Context() *ResourceContext {
	return rc.context
}

// Destroy releases the rendering context. Destroying it while
// swapchains created with it are alive panics with a
// *DanglingSwapchainError.
func (rc *RenderingContext) Destroy() {
	rc.context.releaseRenderingContext(rc)
}

// Swapchain is a ring of platform images to render into. It holds
// a back-reference to the ResourceContext that created it, which
// cannot be destroyed for as long as the Swapchain lives.
type Swapchain struct {
	id        uint64
	context   *ResourceContext
	rendering *RenderingContext
	native    NativeSwapchain
	desc      SwapchainDescriptor
	images    []Handle

	destroyOnce sync.Once
}

// ID identifies the swapchain within its context
func (s *Swapchain) ID() uint64 {
	return s.id
}

// Handle is the native swapchain handle
func (s *Swapchain) Handle() Handle {
	return s.native.Handle()
}

// Descriptor the swapchain was created with
func (s *Swapchain) Descriptor() SwapchainDescriptor {
	return s.desc
}

// Images are the native images owned by the swapchain
func (s *Swapchain) Images() []Handle {
	return s.images
}

// RenderingContext the swapchain was created with
func (s *Swapchain) RenderingContext() *RenderingContext {
	return s.rendering
}

// AcquireImage returns the index of the next image to render into
func (s *Swapchain) AcquireImage() (uint32, error) {
	if !s.context.alive() {
		return 0, ErrContextExpired
	}
	return s.native.Acquire()
}

// WaitImage waits for the acquired image to become writable
func (s *Swapchain) WaitImage(timeout time.Duration) error {
	if !s.context.alive() {
		return ErrContextExpired
	}
	return s.native.Wait(timeout)
}

// ReleaseImage hands the acquired image back to the platform
func (s *Swapchain) ReleaseImage() error {
	if !s.context.alive() {
		return ErrContextExpired
	}
	return s.native.Release()
}

// Destroy releases the platform images. It can be called
// more than once, only the first call has an effect.
func (s *Swapchain) Destroy() {
	s.destroyOnce.Do(func() {
		if err := s.native.Destroy(); err != nil {
			log.WithFields(log.Fields{
				"swapchain": s.id,
			}).Error("xr: swapchain destroy failed: ", err)
		}
		s.images = nil
		s.context.releaseSwapchain(s)
	})
}
