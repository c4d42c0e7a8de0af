package xr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/device"
)

// DefaultFrameTimeout bounds frame waits when nothing else is configured
const DefaultFrameTimeout = 100 * time.Millisecond

// Configuration configures a ResourceContext
type Configuration struct {
	Application ApplicationInfo

	// FrameTimeout bounds a single frame wait
	FrameTimeout time.Duration
}

// ResourceContext owns the platform instance and session. It is the
// only way to create rendering contexts and swapchains, and it lives
// in the World for as long as XR is active.
//
// Resources are owned strictly hierarchically: swapchains are
// destroyed first, then rendering contexts, then the ResourceContext
// which destroys session and instance.
type ResourceContext struct {
	runtime      string
	instance     Instance
	session      Session
	views        []View
	frameTimeout time.Duration

	mutex             sync.Mutex
	state             SessionState
	running           bool
	shutdown          bool
	destroyed         bool
	lost              bool
	nextID            uint64
	renderingContexts int
	swapchains        map[uint64]SwapchainDescriptor
	idle              chan struct{}
	lostC             chan struct{}
}

// NewResourceContext connects to the runtime and creates a session
func NewResourceContext(rt Runtime, cfg Configuration) (*ResourceContext, error) {
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = DefaultFrameTimeout
	}

	instance, err := rt.CreateInstance(cfg.Application)
	if err != nil {
		return nil, fmt.Errorf("xr: create instance on %s: %w", rt.Name(), err)
	}

	session, err := instance.CreateSession()
	if err != nil {
		if derr := instance.Destroy(); derr != nil {
			log.Error("xr: instance destroy failed: ", derr)
		}
		return nil, fmt.Errorf("xr: create session on %s: %w", rt.Name(), err)
	}

	idle := make(chan struct{})
	close(idle)

	c := &ResourceContext{
		runtime:      rt.Name(),
		instance:     instance,
		session:      session,
		views:        session.Views(),
		frameTimeout: cfg.FrameTimeout,
		state:        SessionIdle,
		swapchains:   make(map[uint64]SwapchainDescriptor),
		idle:         idle,
		lostC:        make(chan struct{}),
	}

	log.WithFields(log.Fields{
		"runtime": c.runtime,
		"views":   len(c.views),
	}).Info("xr: session created")
	return c, nil
}

// Runtime is the name of the runtime the context is connected to
func (c *ResourceContext) Runtime() string {
	return c.runtime
}

// Instance returns the native instance handle
func (c *ResourceContext) Instance() Handle {
	return c.instance.Handle()
}

// Session returns the native session handle
func (c *ResourceContext) Session() Handle {
	return c.session.Handle()
}

// Views are the eyes of the session's view configuration
func (c *ResourceContext) Views() []View {
	return c.views
}

// State is the last session state reported by the platform
func (c *ResourceContext) State() SessionState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Running reports whether the session's frame loop has begun
func (c *ResourceContext) Running() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.running && !c.lost && !c.destroyed
}

// Lost is closed when the platform loses or exits the session
func (c *ResourceContext) Lost() <-chan struct{} {
	return c.lostC
}

// Outstanding returns the number of live rendering contexts and swapchains
func (c *ResourceContext) Outstanding() (renderingContexts, swapchains int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.renderingContexts, len(c.swapchains)
}

func (c *ResourceContext) alive() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return !c.destroyed && !c.lost
}

// CreateRenderingContext negotiates a graphics binding for the backend
func (c *ResourceContext) CreateRenderingContext(backend device.Backend) (*RenderingContext, error) {
	c.mutex.Lock()
	if c.shutdown || c.destroyed || c.lost {
		c.mutex.Unlock()
		return nil, ErrContextExpired
	}
	if !c.state.Usable() {
		state := c.state
		c.mutex.Unlock()
		return nil, fmt.Errorf("%w: session is %s", ErrSessionNotReady, state)
	}
	c.mutex.Unlock()

	binding, err := c.session.BindGraphics(backend)
	if err != nil {
		if errors.Is(err, ErrUnsupportedBackend) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedBackend, backend, err)
	}
	binding.Backend = backend

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.shutdown || c.destroyed || c.lost {
		return nil, ErrContextExpired
	}
	c.nextID++
	rc := &RenderingContext{
		id:      c.nextID,
		context: c,
		binding: binding,
	}
	c.acquireLocked()
	c.renderingContexts++
	return rc, nil
}

func (c *ResourceContext) validate(rc *RenderingContext, desc *SwapchainDescriptor) error {
	if desc.Width == 0 || desc.Height == 0 {
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidDescriptor, desc.Width, desc.Height)
	}
	if len(c.views) == 0 {
		return fmt.Errorf("%w: session has no views", ErrInvalidDescriptor)
	}

	var maxWidth, maxHeight uint32
	for _, v := range c.views {
		switch desc.Layout {
		case LayoutSingle:
			maxWidth += v.MaxWidth
		default:
			if v.MaxWidth > maxWidth {
				maxWidth = v.MaxWidth
			}
		}
		if v.MaxHeight > maxHeight {
			maxHeight = v.MaxHeight
		}
	}
	if (maxWidth > 0 && desc.Width > maxWidth) || (maxHeight > 0 && desc.Height > maxHeight) {
		return fmt.Errorf("%w: resolution %dx%d exceeds %dx%d", ErrInvalidDescriptor, desc.Width, desc.Height, maxWidth, maxHeight)
	}

	switch desc.Layout {
	case LayoutPerEye:
		desc.ArrayLayers = uint32(len(c.views))
	case LayoutSingle:
		if desc.Width < uint32(len(c.views)) {
			return fmt.Errorf("%w: width %d cannot hold %d views", ErrInvalidDescriptor, desc.Width, len(c.views))
		}
		desc.ArrayLayers = 1
	default:
		return fmt.Errorf("%w: layout %s", ErrInvalidDescriptor, desc.Layout)
	}

	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}

	for _, f := range c.session.SwapchainFormats(rc.binding.Backend) {
		if f == desc.Format {
			return nil
		}
	}
	return fmt.Errorf("%w: format %s not supported by %s", ErrInvalidDescriptor, desc.Format, rc.binding.Backend)
}

// CreateSwapchain creates a swapchain rendered to with rc. The
// swapchain must be destroyed before rc and before this context.
func (c *ResourceContext) CreateSwapchain(rc *RenderingContext, desc SwapchainDescriptor) (*Swapchain, error) {
	c.mutex.Lock()
	if c.shutdown || c.destroyed || c.lost || rc == nil || rc.context != c || rc.destroyed {
		c.mutex.Unlock()
		return nil, ErrContextExpired
	}
	c.mutex.Unlock()

	if err := c.validate(rc, &desc); err != nil {
		return nil, err
	}

	native, err := c.session.CreateSwapchain(rc.binding, desc)
	if err != nil {
		if errors.Is(err, ErrInvalidDescriptor) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.shutdown || c.destroyed || c.lost {
		if derr := native.Destroy(); derr != nil {
			log.Error("xr: swapchain destroy failed: ", derr)
		}
		return nil, ErrContextExpired
	}
	c.nextID++
	s := &Swapchain{
		id:        c.nextID,
		context:   c,
		rendering: rc,
		native:    native,
		desc:      desc,
		images:    native.Images(),
	}
	c.acquireLocked()
	c.swapchains[s.id] = desc
	rc.swapchains++

	log.WithFields(log.Fields{
		"swapchain": s.id,
		"width":     desc.Width,
		"height":    desc.Height,
		"layers":    desc.ArrayLayers,
		"format":    desc.Format,
		"images":    len(s.images),
	}).Debug("xr: swapchain created")
	return s, nil
}

// acquireLocked marks a new outstanding resource
func (c *ResourceContext) acquireLocked() {
	if c.renderingContexts+len(c.swapchains) == 0 {
		c.idle = make(chan struct{})
	}
}

// releaseLocked closes idle once nothing is outstanding
func (c *ResourceContext) releaseLocked() {
	if c.renderingContexts+len(c.swapchains) == 0 {
		close(c.idle)
	}
}

func (c *ResourceContext) releaseSwapchain(s *Swapchain) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.swapchains[s.id]; !ok {
		return
	}
	delete(c.swapchains, s.id)
	s.rendering.swapchains--
	c.releaseLocked()
}

func (c *ResourceContext) releaseRenderingContext(rc *RenderingContext) {
	c.mutex.Lock()
	if rc.destroyed {
		c.mutex.Unlock()
		return
	}
	if rc.swapchains > 0 {
		err := &DanglingSwapchainError{
			Owner:             "rendering context",
			Swapchains:        c.swapchainIDsLocked(),
			RenderingContexts: c.renderingContexts,
		}
		c.mutex.Unlock()
		panic(err)
	}
	rc.destroyed = true
	c.renderingContexts--
	c.releaseLocked()
	c.mutex.Unlock()
}

func (c *ResourceContext) swapchainIDsLocked() []uint64 {
	ids := make([]uint64, 0, len(c.swapchains))
	for id := range c.swapchains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PollEvents drains the platform's pending events and follows
// session state changes. It returns the number of events handled.
func (c *ResourceContext) PollEvents() int {
	if c.isDestroyed() {
		return 0
	}
	var handled int
	for {
		ev, ok := c.session.PollEvent()
		if !ok {
			return handled
		}
		handled++
		c.handleEvent(ev)
	}
}

func (c *ResourceContext) isDestroyed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.destroyed
}

func (c *ResourceContext) handleEvent(ev Event) {
	switch ev.Kind {
	case EventSessionStateChanged:
		c.mutex.Lock()
		previous := c.state
		c.state = ev.State
		c.mutex.Unlock()

		log.WithFields(log.Fields{
			"from": previous,
			"to":   ev.State,
		}).Info("xr: session state changed")

		switch ev.State {
		case SessionReady:
			if err := c.session.Begin(); err != nil {
				log.Error("xr: session begin failed: ", err)
				return
			}
			c.setRunning(true)
		case SessionStopping:
			if err := c.session.End(); err != nil {
				log.Error("xr: session end failed: ", err)
			}
			c.setRunning(false)
		case SessionLossPending, SessionExiting:
			c.markLost()
		}
	case EventInstanceLossPending:
		log.Warn("xr: instance loss pending")
		c.markLost()
	case EventEventsLost:
		log.WithField("lost", ev.Lost).Warn("xr: platform events lost")
	}
}

func (c *ResourceContext) setRunning(running bool) {
	c.mutex.Lock()
	c.running = running
	c.mutex.Unlock()
}

func (c *ResourceContext) markLost() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.lost {
		return
	}
	c.lost = true
	c.running = false
	close(c.lostC)
}

// Locate waits for the platform's next frame and locates every
// device it knows of at the predicted display time. The wait is
// the only blocking call of a frame.
func (c *ResourceContext) Locate() (FrameState, []DeviceLocation, error) {
	if !c.Running() {
		return FrameState{}, nil, ErrSessionNotReady
	}
	state, err := c.session.WaitFrame(c.frameTimeout)
	if err != nil {
		return FrameState{}, nil, err
	}
	locations, err := c.session.Locate(state.PredictedDisplayTime)
	if err != nil {
		return state, nil, err
	}
	return state, locations, nil
}

// BeginFrame starts rendering a frame returned by Locate
func (c *ResourceContext) BeginFrame() error {
	if !c.alive() {
		return ErrContextExpired
	}
	return c.session.BeginFrame()
}

// EndFrame submits the rendered views for composition
func (c *ResourceContext) EndFrame(state FrameState, views []ProjectionView) error {
	if !c.alive() {
		return ErrContextExpired
	}
	return c.session.EndFrame(state, views)
}

// BeginShutdown stops the context from creating new resources.
// Resources already created keep working until destroyed.
func (c *ResourceContext) BeginShutdown() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.shutdown = true
}

// Drain waits until every swapchain and rendering context created
// by the context has been destroyed.
func (c *ResourceContext) Drain(ctx context.Context) error {
	c.mutex.Lock()
	idle := c.idle
	c.mutex.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy ends the session and destroys session and instance.
// Every swapchain and rendering context must have been destroyed
// before, otherwise Destroy panics with a *DanglingSwapchainError.
func (c *ResourceContext) Destroy() {
	c.mutex.Lock()
	if c.destroyed {
		c.mutex.Unlock()
		return
	}
	if c.renderingContexts > 0 || len(c.swapchains) > 0 {
		err := &DanglingSwapchainError{
			Owner:             "resource context",
			Swapchains:        c.swapchainIDsLocked(),
			RenderingContexts: c.renderingContexts,
		}
		c.mutex.Unlock()
		panic(err)
	}
	running := c.running
	c.shutdown = true
	c.destroyed = true
	c.running = false
	c.mutex.Unlock()

	if running {
		if err := c.session.End(); err != nil {
			log.Error("xr: session end failed: ", err)
		}
	}
	if err := c.session.Destroy(); err != nil {
		log.Error("xr: session destroy failed: ", err)
	}
	if err := c.instance.Destroy(); err != nil {
		log.Error("xr: instance destroy failed: ", err)
	}
	log.WithField("runtime", c.runtime).Info("xr: session destroyed")
}
