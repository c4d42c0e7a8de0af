package renderer

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/xr"
)

// State of the Bridge
type State int

// Bridge states. XRBound and DefaultBound are stable for the
// duration of a session, Shutdown leaves either of them.
const (
	StateUninitialized State = iota
	StateProbingContext
	StateXRBound
	StateDefaultBound
	StateRunning
	StateShuttingDown
	StateTerminated
)

var stateNames = [...]string{
	StateUninitialized:  "uninitialized",
	StateProbingContext: "probing-context",
	StateXRBound:        "xr-bound",
	StateDefaultBound:   "default-bound",
	StateRunning:        "running",
	StateShuttingDown:   "shutting-down",
	StateTerminated:     "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[s]
}

// Binding is the kind of surface the renderer presents to
type Binding int

// Bindings
const (
	BindingNone Binding = iota
	BindingXR
	BindingDefault
)

func (b Binding) String() string {
	switch b {
	case BindingXR:
		return "xr"
	case BindingDefault:
		return "default"
	}
	return "none"
}

// ErrState is returned when a bridge operation is not valid in its current state
var ErrState = errors.New("renderer: invalid bridge state")

// Bridge connects the renderer to XR resources. The renderer does not
// know about XR otherwise: when the World holds no resource context,
// the bridge binds the default surface and makes no XR calls at all.
type Bridge struct {
	world    *core.World
	cfg      BridgeConfiguration
	fallback SurfaceFactory

	mutex     sync.Mutex
	state     State
	binding   Binding
	context   *xr.ResourceContext
	rendering *xr.RenderingContext
	swapchain *xr.Swapchain
	surface   Surface
}

// NewBridge creates a bridge probing world for a resource context.
// fallback creates the default surface, nil leaves the default
// binding without a surface.
func NewBridge(world *core.World, cfg BridgeConfiguration, fallback SurfaceFactory) *Bridge {
	return &Bridge{
		world:    world,
		cfg:      cfg,
		fallback: fallback,
	}
}

// Initialise probes the World and binds a surface. XR resource
// failures are not errors, the bridge falls back to the default
// surface. Only a failing default surface is returned as an error.
// Calling Initialise again has no effect until the bridge is
// shut down, a terminated bridge probes the World anew.
func (b *Bridge) Initialise() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.state != StateUninitialized && b.state != StateTerminated {
		return nil
	}
	b.state = StateProbingContext
	b.binding = BindingNone

	if ctx, ok := core.Lookup[*xr.ResourceContext](b.world); ok {
		err := b.bindXR(ctx)
		if err == nil {
			b.state = StateXRBound
			b.binding = BindingXR
			log.WithFields(log.Fields{
				"runtime": ctx.Runtime(),
				"backend": b.cfg.Backend,
				"extent":  b.surface.Extent(),
			}).Info("renderer: bound to xr swapchain")
			return nil
		}
		log.WithError(err).Warn("renderer: xr unavailable, using default surface")
	}

	if b.fallback != nil {
		surface, err := b.fallback()
		if err != nil {
			b.state = StateUninitialized
			return fmt.Errorf("renderer: default surface: %w", err)
		}
		b.surface = surface
	}
	b.state = StateDefaultBound
	b.binding = BindingDefault
	log.Info("renderer: bound to default surface")
	return nil
}

func (b *Bridge) bindXR(ctx *xr.ResourceContext) error {
	rc, err := ctx.CreateRenderingContext(b.cfg.Backend)
	if err != nil {
		return fmt.Errorf("rendering context: %w", err)
	}

	desc := xr.DefaultSwapchainDescriptor(ctx.Views(), b.cfg.Format, b.cfg.Layout)
	swapchain, err := ctx.CreateSwapchain(rc, desc)
	if err != nil {
		rc.Destroy()
		return fmt.Errorf("swapchain: %w", err)
	}

	b.context = ctx
	b.rendering = rc
	b.swapchain = swapchain
	b.surface = NewXRSurface(ctx, swapchain, b.cfg.ImageTimeout)
	return nil
}

// Start begins rendering to the bound surface
func (b *Bridge) Start() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	switch b.state {
	case StateRunning:
		return nil
	case StateXRBound, StateDefaultBound:
		b.state = StateRunning
		return nil
	}
	return fmt.Errorf("%w: start while %s", ErrState, b.state)
}

// Observe checks, without blocking, whether the XR session was lost.
// A lost session shuts the bridge down and Observe returns true.
func (b *Bridge) Observe() bool {
	b.mutex.Lock()
	ctx := b.context
	live := b.state != StateShuttingDown && b.state != StateTerminated
	b.mutex.Unlock()
	if ctx == nil || !live {
		return false
	}

	select {
	case <-ctx.Lost():
		log.WithField("runtime", ctx.Runtime()).Warn("renderer: xr session lost, shutting down")
		b.Shutdown()
		return true
	default:
		return false
	}
}

// Shutdown releases the surface, swapchain first and then the
// rendering context. It can be called more than once.
func (b *Bridge) Shutdown() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.state == StateShuttingDown || b.state == StateTerminated {
		return
	}
	b.state = StateShuttingDown

	if b.surface != nil {
		b.surface.Destroy()
		b.surface = nil
	}
	b.swapchain = nil
	if b.rendering != nil {
		b.rendering.Destroy()
		b.rendering = nil
	}
	b.context = nil

	b.state = StateTerminated
	log.WithField("binding", b.binding).Info("renderer: bridge terminated")
}

// State returns the bridge's current state
func (b *Bridge) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// Binding reports which surface the renderer was bound to.
// It keeps reporting it after shutdown.
func (b *Bridge) Binding() Binding {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.binding
}

// Surface returns the bound surface, nil when there is none
func (b *Bridge) Surface() Surface {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.surface
}

// Swapchain returns the XR swapchain, nil unless bound to XR
func (b *Bridge) Swapchain() *xr.Swapchain {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.swapchain
}
