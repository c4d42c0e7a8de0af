// Package pipeline runs the render frame loop. A frame polls device
// poses, publishes them, derives the camera and renders it to whatever
// surface the renderer bridge bound, XR swapchain or window.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/camera"
	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/renderer"
	"github.com/devblok/koruxr/tracking"
	"github.com/devblok/koruxr/xr"
)

// Renderer draws frames. It does not know whether its target belongs
// to an XR swapchain or a window.
type Renderer interface {
	// DefaultSurface creates the window surface used without XR
	DefaultSurface() (renderer.Surface, error)

	// Render draws a frame into target. cam is nil until
	// the head has been tracked once.
	Render(target renderer.Target, cam *camera.Parameters, snapshot *tracking.Snapshot) error
}

// Pipeline errors
var (
	ErrClosed      = errors.New("pipeline: closed")
	ErrSessionLost = errors.New("pipeline: xr session lost")
)

// Pipeline is the frame loop. It publishes the tracking registry and
// the camera store into the World for as long as it runs.
//
// A resource context found in the World at creation is handed over
// to the pipeline: it is destroyed and removed from the World by
// Close, or as soon as the session is lost.
type Pipeline struct {
	world    *core.World
	cfg      core.Configuration
	time     *core.Time
	renderer Renderer

	registry *tracking.Registry
	store    *camera.Store
	deriver  *camera.Deriver
	bridge   *renderer.Bridge
	context  *xr.ResourceContext

	// set while resources created outside the pipeline keep the
	// lost context alive, Close retries releasing it
	draining bool
	closed   bool
}

// New creates the pipeline and binds the renderer
func New(world *core.World, cfg core.Configuration, r Renderer) (*Pipeline, error) {
	bcfg, err := renderer.NewBridgeConfiguration(cfg.XR)
	if err != nil {
		return nil, err
	}
	registry, err := tracking.NewRegistry(cfg.Tracking)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", core.EnvTrackedDevices, err)
	}

	p := &Pipeline{
		world:    world,
		cfg:      cfg,
		renderer: r,
		registry: registry,
		store:    &camera.Store{},
	}
	p.context, _ = core.Lookup[*xr.ResourceContext](world)

	var views []xr.View
	if p.context != nil {
		views = p.context.Views()
	}
	p.deriver = camera.NewDeriver(views, cfg.XR, p.store)

	if err := core.Insert(world, p.registry); err != nil {
		return nil, err
	}
	if err := core.Insert(world, p.store); err != nil {
		core.Remove[*tracking.Registry](world)
		return nil, err
	}

	p.bridge = renderer.NewBridge(world, bcfg, r.DefaultSurface)
	if err := p.bridge.Initialise(); err != nil {
		p.removeResources()
		return nil, err
	}
	if swapchain := p.bridge.Swapchain(); swapchain != nil {
		p.deriver.SetViewports(camera.Viewports(swapchain.Descriptor(), len(views)))
	}
	if err := p.bridge.Start(); err != nil {
		p.bridge.Shutdown()
		p.removeResources()
		return nil, err
	}

	p.time = core.NewTime(cfg.Time)
	log.WithFields(log.Fields{
		"binding": p.bridge.Binding(),
		"xr":      p.context != nil,
		"fps":     p.time.Fps(),
	}).Info("pipeline: started")
	return p, nil
}

// Registry returns the tracked device registry
func (p *Pipeline) Registry() *tracking.Registry {
	return p.registry
}

// Store returns the published camera parameters
func (p *Pipeline) Store() *camera.Store {
	return p.store
}

// Bridge returns the renderer's bridge
func (p *Pipeline) Bridge() *renderer.Bridge {
	return p.bridge
}

// pacer paces frames when there is no running XR session to do so.
// It never locates a device.
type pacer struct {
	time *core.Time
}

func (p pacer) Locate() (xr.FrameState, []xr.DeviceLocation, error) {
	p.time.WaitFrame()
	return xr.FrameState{}, nil, xr.ErrSessionNotReady
}

// Step runs one frame. Poll is the only call that blocks, for as
// long as the XR runtime or the frame rate says.
//
// When the XR session is lost while rendering into its swapchain,
// Step releases everything XR and returns ErrSessionLost. A session
// lost while rendering to the window is released silently.
func (p *Pipeline) Step() error {
	if p.closed {
		return ErrClosed
	}

	if p.context != nil {
		p.context.PollEvents()
		if err := p.observeLoss(); err != nil {
			return err
		}
	}

	xrFrame := p.context != nil && p.context.Running()
	var src tracking.Source = pacer{p.time}
	if xrFrame {
		src = p.context
	}
	snapshot := p.registry.Update(p.registry.Poll(src))

	head, _ := snapshot.Sample(xr.Head)
	cam, _ := p.deriver.Update(snapshot.Frame, head)

	frame := snapshot.FrameState
	if xrFrame && frame == (xr.FrameState{}) {
		// the frame wait failed, there is no frame to begin
		return nil
	}

	surface := p.bridge.Surface()
	if surface == nil {
		return nil
	}
	if p.bridge.Binding() == renderer.BindingXR {
		if !xrFrame {
			// the session stopped, frames are neither waited for nor
			// begun until it runs again
			return nil
		}
		return p.present(surface, frame, cam, snapshot, frame.ShouldRender)
	}

	if xrFrame {
		// the runtime keeps pacing frames the renderer does not
		// present to it, every one of them has to be ended
		if err := p.endEmptyFrame(frame); err != nil {
			log.WithError(err).Debug("pipeline: ending xr frame")
		}
	}
	return p.present(surface, frame, cam, snapshot, true)
}

func (p *Pipeline) observeLoss() error {
	if p.draining {
		return nil
	}
	if p.bridge.Observe() {
		return errors.Join(ErrSessionLost, p.releaseContext())
	}
	select {
	case <-p.context.Lost():
		log.WithField("runtime", p.context.Runtime()).Warn("pipeline: xr session lost")
		return p.releaseContext()
	default:
		return nil
	}
}

func (p *Pipeline) endEmptyFrame(frame xr.FrameState) error {
	if err := p.context.BeginFrame(); err != nil {
		return err
	}
	return p.context.EndFrame(frame, nil)
}

func (p *Pipeline) present(surface renderer.Surface, frame xr.FrameState, cam *camera.Parameters, snapshot *tracking.Snapshot, render bool) error {
	target, err := surface.Acquire()
	if err != nil {
		return fmt.Errorf("pipeline: acquire frame %d: %w", snapshot.Frame, err)
	}

	var renderErr error
	if render {
		if renderErr = p.renderer.Render(target, cam, snapshot); renderErr != nil {
			renderErr = fmt.Errorf("pipeline: render frame %d: %w", snapshot.Frame, renderErr)
		}
	}

	// an acquired image is always handed back, rendered or not
	if err := surface.Present(frame, cam); err != nil {
		return errors.Join(renderErr, fmt.Errorf("pipeline: present frame %d: %w", snapshot.Frame, err))
	}
	return renderErr
}

// releaseContext destroys the resource context once everything
// created from it was released. When that does not happen in time
// the pipeline keeps the context, it stays in the World.
func (p *Pipeline) releaseContext() error {
	ctx := p.context
	if ctx == nil {
		return nil
	}
	ctx.BeginShutdown()

	timeout := p.cfg.XR.FrameTimeout
	if timeout <= 0 {
		timeout = xr.DefaultFrameTimeout
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ctx.Drain(drainCtx); err != nil {
		p.draining = true
		rcs, scs := ctx.Outstanding()
		log.WithFields(log.Fields{
			"rendering_contexts": rcs,
			"swapchains":         scs,
		}).Error("pipeline: xr context still in use, not destroyed")
		return fmt.Errorf("pipeline: %d rendering contexts and %d swapchains outstanding: %w", rcs, scs, err)
	}
	p.context = nil
	p.draining = false

	if owned, ok := core.Lookup[*xr.ResourceContext](p.world); ok && owned == ctx {
		core.Remove[*xr.ResourceContext](p.world)
	}
	ctx.Destroy()
	return nil
}

func (p *Pipeline) removeResources() {
	core.Remove[*camera.Store](p.world)
	core.Remove[*tracking.Registry](p.world)
}

// Close stops the pipeline and releases resources leaves first:
// swapchain, rendering context, then the session and instance.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	p.bridge.Shutdown()
	err := p.releaseContext()
	p.removeResources()
	p.time.Stop()

	var frames uint64
	if snapshot := p.registry.Snapshot(); snapshot != nil {
		frames = snapshot.Frame
	}
	log.WithField("frames", frames).Info("pipeline: closed")
	return err
}
