package renderer

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/camera"
	"github.com/devblok/koruxr/xr"
)

// XRSurface presents into an XR swapchain. The surface owns the
// swapchain, destroying the surface destroys it.
type XRSurface struct {
	context   *xr.ResourceContext
	swapchain *xr.Swapchain
	timeout   time.Duration

	began    bool
	acquired bool
}

// NewXRSurface wraps a swapchain created from context
func NewXRSurface(context *xr.ResourceContext, swapchain *xr.Swapchain, timeout time.Duration) *XRSurface {
	return &XRSurface{
		context:   context,
		swapchain: swapchain,
		timeout:   timeout,
	}
}

// Swapchain returns the swapchain presented into
func (s *XRSurface) Swapchain() *xr.Swapchain {
	return s.swapchain
}

// Extent implements interface
func (s *XRSurface) Extent() Extent {
	desc := s.swapchain.Descriptor()
	return Extent{
		Width:  desc.Width,
		Height: desc.Height,
		Layers: desc.ArrayLayers,
	}
}

// Acquire implements interface. It begins the platform frame and
// waits until the next swapchain image may be written.
func (s *XRSurface) Acquire() (Target, error) {
	if !s.began {
		if err := s.context.BeginFrame(); err != nil {
			return Target{}, err
		}
		s.began = true
	}

	index, err := s.swapchain.AcquireImage()
	if err != nil {
		return Target{}, err
	}
	s.acquired = true

	if err := s.swapchain.WaitImage(s.timeout); err != nil {
		s.release()
		return Target{}, err
	}

	return Target{
		Image:  s.swapchain.Images()[index],
		Index:  index,
		Extent: s.Extent(),
	}, nil
}

// Present implements interface. The rendered image goes back to the
// platform together with the pose and field of view of every eye.
// Without a camera an empty frame is submitted.
func (s *XRSurface) Present(frame xr.FrameState, cam *camera.Parameters) error {
	var errs []error
	if s.acquired {
		errs = append(errs, s.release())
	}
	if !s.began {
		return errors.Join(errs...)
	}
	s.began = false

	var views []xr.ProjectionView
	if cam != nil && frame.ShouldRender {
		views = make([]xr.ProjectionView, len(cam.Eyes))
		for i, eye := range cam.Eyes {
			views[i] = xr.ProjectionView{
				Pose:            eye.Pose,
				Fov:             eye.Fov,
				Swapchain:       s.swapchain.Handle(),
				ImageArrayIndex: eye.Viewport.Layer,
				Rect: xr.Rect{
					X:      int32(eye.Viewport.X),
					Y:      int32(eye.Viewport.Y),
					Width:  int32(eye.Viewport.Width),
					Height: int32(eye.Viewport.Height),
				},
			}
		}
	}
	errs = append(errs, s.context.EndFrame(frame, views))
	return errors.Join(errs...)
}

func (s *XRSurface) release() error {
	s.acquired = false
	return s.swapchain.ReleaseImage()
}

// Destroy implements interface
func (s *XRSurface) Destroy() {
	if s.acquired {
		if err := s.release(); err != nil {
			log.Debug("renderer: releasing image on destroy: ", err)
		}
	}
	s.swapchain.Destroy()
}
