// Package xrtest provides an in-memory XR runtime for tests.
// Every call into the runtime is counted and destruction order
// is recorded, so tests can assert on what the engine did.
package xrtest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/koruxr/device"
	"github.com/devblok/koruxr/xr"
)

// FrameDuration is the display period the runtime reports
const FrameDuration = 11 * time.Millisecond

// StereoViews is a symmetric stereo view configuration with
// a 64mm interpupillary distance
func StereoViews() []xr.View {
	fov := xr.Fov{Left: -0.8, Right: 0.8, Up: 0.8, Down: -0.8}
	return []xr.View{
		{
			RecommendedWidth: 1440, RecommendedHeight: 1600,
			MaxWidth: 2880, MaxHeight: 3200,
			Fov:    fov,
			Offset: xr.Pose{Position: glm.Vec3{-0.032, 0, 0}, Orientation: glm.QuatIdent()},
		},
		{
			RecommendedWidth: 1440, RecommendedHeight: 1600,
			MaxWidth: 2880, MaxHeight: 3200,
			Fov:    fov,
			Offset: xr.Pose{Position: glm.Vec3{0.032, 0, 0}, Orientation: glm.QuatIdent()},
		},
	}
}

// Runtime is a scriptable xr.Runtime
type Runtime struct {
	mutex sync.Mutex

	// Backends the runtime can bind to
	Backends []device.Backend

	// Formats supported for swapchains
	Formats []device.Format

	// ViewConfiguration returned by sessions
	ViewConfiguration []xr.View

	// Failures injected into the matching calls
	FailInstance  error
	FailSession   error
	FailSwapchain error

	// FrameErrors makes the WaitFrame of a frame number (from 1) fail
	FrameErrors map[uint64]error

	// Gate, when set, is received from before every WaitFrame returns
	Gate chan struct{}

	calls     map[string]int
	events    []xr.Event
	frames    [][]xr.DeviceLocation
	frame     uint64
	destroyed []string
	ended     []xr.FrameState
	submitted [][]xr.ProjectionView
	nextID    uintptr
	live      map[xr.Handle]bool
}

// New creates a runtime binding Vulkan and headless backends
// with a stereo view configuration.
func New() *Runtime {
	return &Runtime{
		Backends:          []device.Backend{device.BackendVulkan, device.BackendHeadless},
		Formats:           []device.Format{device.FormatRGBA8Srgb, device.FormatBGRA8Srgb, device.FormatRGBA8Unorm},
		ViewConfiguration: StereoViews(),
		FrameErrors:       make(map[uint64]error),
		calls:             make(map[string]int),
		live:              make(map[xr.Handle]bool),
	}
}

// NewContext creates a ResourceContext on r and drives its session
// to the focused state.
func NewContext(tb testing.TB, r *Runtime) *xr.ResourceContext {
	tb.Helper()
	ctx, err := xr.NewResourceContext(r, xr.Configuration{
		Application:  xr.DefaultApplicationInfo,
		FrameTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		tb.Fatal(err)
	}
	r.Push(
		xr.StateChanged(xr.SessionReady),
		xr.StateChanged(xr.SessionSynchronized),
		xr.StateChanged(xr.SessionVisible),
		xr.StateChanged(xr.SessionFocused),
	)
	ctx.PollEvents()
	return ctx
}

func (r *Runtime) call(name string) {
	r.mutex.Lock()
	r.calls[name]++
	r.mutex.Unlock()
}

func (r *Runtime) handle() xr.Handle {
	r.nextID++
	h := xr.Handle(0x1000 + r.nextID)
	r.live[h] = true
	return h
}

// Calls returns how often the named call was made
func (r *Runtime) Calls(name string) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.calls[name]
}

// TotalCalls is the number of calls made into the runtime
func (r *Runtime) TotalCalls() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var n int
	for _, c := range r.calls {
		n += c
	}
	return n
}

// Destroyed lists destroyed objects in destruction order,
// as "swapchain", "session" and "instance"
func (r *Runtime) Destroyed() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.destroyed...)
}

// Ended returns the frame states submitted with EndFrame
func (r *Runtime) Ended() []xr.FrameState {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]xr.FrameState(nil), r.ended...)
}

// Submitted returns the projection views of every EndFrame
func (r *Runtime) Submitted() [][]xr.ProjectionView {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([][]xr.ProjectionView(nil), r.submitted...)
}

// Push queues platform events
func (r *Runtime) Push(events ...xr.Event) {
	r.mutex.Lock()
	r.events = append(r.events, events...)
	r.mutex.Unlock()
}

// Script queues device locations for the following frames, one
// slice per frame. The last frame repeats once the script runs out.
func (r *Runtime) Script(frames ...[]xr.DeviceLocation) {
	r.mutex.Lock()
	r.frames = append(r.frames, frames...)
	r.mutex.Unlock()
}

// Name implements interface
func (r *Runtime) Name() string {
	return "xrtest"
}

// CreateInstance implements interface
func (r *Runtime) CreateInstance(info xr.ApplicationInfo) (xr.Instance, error) {
	r.call("CreateInstance")
	if r.FailInstance != nil {
		return nil, r.FailInstance
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return &instance{runtime: r, handle: r.handle()}, nil
}

type instance struct {
	runtime *Runtime
	handle  xr.Handle
}

func (i *instance) Handle() xr.Handle { return i.handle }

func (i *instance) CreateSession() (xr.Session, error) {
	i.runtime.call("CreateSession")
	if i.runtime.FailSession != nil {
		return nil, i.runtime.FailSession
	}
	i.runtime.mutex.Lock()
	defer i.runtime.mutex.Unlock()
	return &session{runtime: i.runtime, handle: i.runtime.handle()}, nil
}

func (i *instance) Destroy() error {
	i.runtime.call("DestroyInstance")
	i.runtime.mutex.Lock()
	defer i.runtime.mutex.Unlock()
	if !i.runtime.live[i.handle] {
		return errors.New("xrtest: instance destroyed twice")
	}
	delete(i.runtime.live, i.handle)
	i.runtime.destroyed = append(i.runtime.destroyed, "instance")
	return nil
}

type session struct {
	runtime *Runtime
	handle  xr.Handle
}

func (s *session) Handle() xr.Handle { return s.handle }

func (s *session) Views() []xr.View {
	s.runtime.call("Views")
	return s.runtime.ViewConfiguration
}

func (s *session) BindGraphics(backend device.Backend) (device.Binding, error) {
	s.runtime.call("BindGraphics")
	for _, b := range s.runtime.Backends {
		if b == backend {
			return device.Binding{
				Backend:        backend,
				Instance:       0xA0,
				PhysicalDevice: 0xA1,
				Device:         0xA2,
			}, nil
		}
	}
	return device.Binding{}, fmt.Errorf("xrtest: cannot bind %s", backend)
}

func (s *session) SwapchainFormats(device.Backend) []device.Format {
	s.runtime.call("SwapchainFormats")
	return s.runtime.Formats
}

func (s *session) CreateSwapchain(binding device.Binding, desc xr.SwapchainDescriptor) (xr.NativeSwapchain, error) {
	s.runtime.call("CreateSwapchain")
	if s.runtime.FailSwapchain != nil {
		return nil, s.runtime.FailSwapchain
	}
	s.runtime.mutex.Lock()
	defer s.runtime.mutex.Unlock()
	if !s.runtime.live[s.handle] {
		return nil, errors.New("xrtest: session destroyed")
	}
	sc := &swapchain{runtime: s.runtime, handle: s.runtime.handle()}
	for i := 0; i < 3; i++ {
		sc.images = append(sc.images, s.runtime.handle())
	}
	return sc, nil
}

func (s *session) PollEvent() (xr.Event, bool) {
	s.runtime.mutex.Lock()
	defer s.runtime.mutex.Unlock()
	if len(s.runtime.events) == 0 {
		return xr.Event{}, false
	}
	ev := s.runtime.events[0]
	s.runtime.events = s.runtime.events[1:]
	return ev, true
}

func (s *session) Begin() error {
	s.runtime.call("Begin")
	return nil
}

func (s *session) End() error {
	s.runtime.call("End")
	return nil
}

func (s *session) WaitFrame(timeout time.Duration) (xr.FrameState, error) {
	s.runtime.call("WaitFrame")
	if s.runtime.Gate != nil {
		<-s.runtime.Gate
	}
	s.runtime.mutex.Lock()
	defer s.runtime.mutex.Unlock()
	s.runtime.frame++
	if err := s.runtime.FrameErrors[s.runtime.frame]; err != nil {
		return xr.FrameState{}, err
	}
	return xr.FrameState{
		PredictedDisplayTime:   time.Duration(s.runtime.frame) * FrameDuration,
		PredictedDisplayPeriod: FrameDuration,
		ShouldRender:           true,
	}, nil
}

func (s *session) Locate(time.Duration) ([]xr.DeviceLocation, error) {
	s.runtime.call("Locate")
	s.runtime.mutex.Lock()
	defer s.runtime.mutex.Unlock()
	if len(s.runtime.frames) == 0 {
		return []xr.DeviceLocation{{Device: xr.Head, Pose: xr.IdentityPose, Tracked: true}}, nil
	}
	index := int(s.runtime.frame) - 1
	if index >= len(s.runtime.frames) {
		index = len(s.runtime.frames) - 1
	}
	return s.runtime.frames[index], nil
}

func (s *session) BeginFrame() error {
	s.runtime.call("BeginFrame")
	return nil
}

func (s *session) EndFrame(state xr.FrameState, views []xr.ProjectionView) error {
	s.runtime.call("EndFrame")
	s.runtime.mutex.Lock()
	s.runtime.ended = append(s.runtime.ended, state)
	s.runtime.submitted = append(s.runtime.submitted, append([]xr.ProjectionView(nil), views...))
	s.runtime.mutex.Unlock()
	return nil
}

func (s *session) Destroy() error {
	s.runtime.call("DestroySession")
	s.runtime.mutex.Lock()
	defer s.runtime.mutex.Unlock()
	delete(s.runtime.live, s.handle)
	s.runtime.destroyed = append(s.runtime.destroyed, "session")
	return nil
}

type swapchain struct {
	runtime  *Runtime
	handle   xr.Handle
	images   []xr.Handle
	next     uint32
	acquired bool
}

func (s *swapchain) Handle() xr.Handle   { return s.handle }
func (s *swapchain) Images() []xr.Handle { return s.images }

func (s *swapchain) Acquire() (uint32, error) {
	s.runtime.call("AcquireImage")
	if s.acquired {
		return 0, errors.New("xrtest: image already acquired")
	}
	s.acquired = true
	index := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return index, nil
}

func (s *swapchain) Wait(time.Duration) error {
	s.runtime.call("WaitImage")
	return nil
}

func (s *swapchain) Release() error {
	s.runtime.call("ReleaseImage")
	if !s.acquired {
		return errors.New("xrtest: no image acquired")
	}
	s.acquired = false
	return nil
}

func (s *swapchain) Destroy() error {
	s.runtime.call("DestroySwapchain")
	s.runtime.mutex.Lock()
	defer s.runtime.mutex.Unlock()
	delete(s.runtime.live, s.handle)
	s.runtime.destroyed = append(s.runtime.destroyed, "swapchain")
	return nil
}
