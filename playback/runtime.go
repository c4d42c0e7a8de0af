package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/device"
	"github.com/devblok/koruxr/xr"
)

// ErrEndOfRecording is returned by frame waits past the last frame
var ErrEndOfRecording = errors.New("playback: end of recording")

// DefaultSwapchainImages is the number of images of replayed swapchains
const DefaultSwapchainImages = 3

// RuntimeOptions configures a replaying runtime
type RuntimeOptions struct {
	// Backends the runtime pretends to bind, vulkan and headless by default
	Backends []device.Backend

	// Formats offered for swapchains
	Formats []device.Format

	// Loop replays from the first frame instead of exiting at the end
	Loop bool

	// LoseAt, if not zero, loses the session at that frame
	LoseAt uint64

	// Realtime paces frame waits at the recorded frame rate
	Realtime bool

	// SwapchainImages is the number of images per swapchain
	SwapchainImages uint32
}

// Runtime is an xr.Runtime replaying a Recording. Its session goes
// through the states a headset session would, and exits after the
// last frame.
type Runtime struct {
	recording *Recording
	opts      RuntimeOptions
	period    time.Duration

	mutex   sync.Mutex
	events  []xr.Event
	frame   uint64
	ended   int
	exiting bool
	handles uintptr
	ticker  *time.Ticker
}

// NewRuntime creates a runtime replaying rec
func NewRuntime(rec *Recording, opts RuntimeOptions) *Runtime {
	if len(opts.Backends) == 0 {
		opts.Backends = []device.Backend{device.BackendVulkan, device.BackendHeadless}
	}
	if len(opts.Formats) == 0 {
		opts.Formats = []device.Format{device.FormatRGBA8Srgb, device.FormatBGRA8Srgb}
	}
	if opts.SwapchainImages == 0 {
		opts.SwapchainImages = DefaultSwapchainImages
	}
	return &Runtime{
		recording: rec,
		opts:      opts,
		period:    rec.FramePeriod(),
	}
}

// Frames returns the number of frames waited for
func (r *Runtime) Frames() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.frame
}

// Ended returns the number of frames ended by the renderer
func (r *Runtime) Ended() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.ended
}

func (r *Runtime) handle() xr.Handle {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.handles++
	return xr.Handle(r.handles)
}

func (r *Runtime) push(events ...xr.Event) {
	r.events = append(r.events, events...)
}

// Name implements interface
func (r *Runtime) Name() string {
	if r.recording.Header.Runtime == "" {
		return "playback"
	}
	return "playback/" + r.recording.Header.Runtime
}

// CreateInstance implements interface
func (r *Runtime) CreateInstance(info xr.ApplicationInfo) (xr.Instance, error) {
	log.WithFields(log.Fields{
		"application": info.ApplicationName,
		"frames":      len(r.recording.Frames),
	}).Debug("playback: instance created")
	return &instance{runtime: r, handle: r.handle()}, nil
}

type instance struct {
	runtime *Runtime
	handle  xr.Handle
}

// Handle implements interface
func (i *instance) Handle() xr.Handle {
	return i.handle
}

// CreateSession implements interface
func (i *instance) CreateSession() (xr.Session, error) {
	if len(i.runtime.recording.Header.Views) == 0 {
		return nil, errors.New("playback: recording has no views")
	}
	i.runtime.mutex.Lock()
	i.runtime.push(
		xr.StateChanged(xr.SessionIdle),
		xr.StateChanged(xr.SessionReady),
		xr.StateChanged(xr.SessionSynchronized),
		xr.StateChanged(xr.SessionVisible),
		xr.StateChanged(xr.SessionFocused),
	)
	i.runtime.mutex.Unlock()
	return &session{runtime: i.runtime, handle: i.runtime.handle()}, nil
}

// Destroy implements interface
func (i *instance) Destroy() error {
	return nil
}

type session struct {
	runtime *Runtime
	handle  xr.Handle
}

// Handle implements interface
func (s *session) Handle() xr.Handle {
	return s.handle
}

// Views implements interface
func (s *session) Views() []xr.View {
	return s.runtime.recording.Header.Views
}

// BindGraphics implements interface. Replayed sessions have no
// graphics device, the binding carries the backend only.
func (s *session) BindGraphics(backend device.Backend) (device.Binding, error) {
	for _, b := range s.runtime.opts.Backends {
		if b == backend {
			return device.Binding{Backend: backend}, nil
		}
	}
	return device.Binding{}, fmt.Errorf("%w: playback cannot bind %s", xr.ErrUnsupportedBackend, backend)
}

// SwapchainFormats implements interface
func (s *session) SwapchainFormats(device.Backend) []device.Format {
	return s.runtime.opts.Formats
}

// CreateSwapchain implements interface
func (s *session) CreateSwapchain(binding device.Binding, desc xr.SwapchainDescriptor) (xr.NativeSwapchain, error) {
	sc := &swapchain{handle: s.runtime.handle()}
	for i := uint32(0); i < s.runtime.opts.SwapchainImages; i++ {
		sc.images = append(sc.images, s.runtime.handle())
	}
	return sc, nil
}

// PollEvent implements interface
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

// Begin implements interface
func (s *session) Begin() error {
	s.runtime.mutex.Lock()
	defer s.runtime.mutex.Unlock()
	if s.runtime.opts.Realtime && s.runtime.ticker == nil {
		s.runtime.ticker = time.NewTicker(s.runtime.period)
	}
	return nil
}

// End implements interface
func (s *session) End() error {
	s.runtime.mutex.Lock()
	defer s.runtime.mutex.Unlock()
	if s.runtime.ticker != nil {
		s.runtime.ticker.Stop()
		s.runtime.ticker = nil
	}
	return nil
}

// WaitFrame implements interface
func (s *session) WaitFrame(timeout time.Duration) (xr.FrameState, error) {
	r := s.runtime
	r.mutex.Lock()
	ticker := r.ticker
	r.mutex.Unlock()
	if ticker != nil {
		select {
		case <-ticker.C:
		case <-time.After(timeout):
			return xr.FrameState{}, xr.ErrFrameTimeout
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.frame++
	if r.opts.LoseAt != 0 && r.frame == r.opts.LoseAt {
		log.WithField("frame", r.frame).Debug("playback: losing session")
		r.push(xr.StateChanged(xr.SessionLossPending))
	}
	if r.frame > uint64(len(r.recording.Frames)) && !r.opts.Loop {
		if !r.exiting {
			r.exiting = true
			r.push(xr.StateChanged(xr.SessionStopping), xr.StateChanged(xr.SessionExiting))
		}
		return xr.FrameState{}, ErrEndOfRecording
	}
	return xr.FrameState{
		PredictedDisplayTime:   time.Duration(r.frame) * r.period,
		PredictedDisplayPeriod: r.period,
		ShouldRender:           true,
	}, nil
}

// Locate implements interface. Devices are located as recorded
// for the current frame, whatever the display time.
func (s *session) Locate(time.Duration) ([]xr.DeviceLocation, error) {
	r := s.runtime
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.frame == 0 {
		return nil, nil
	}
	index := int((r.frame - 1) % uint64(len(r.recording.Frames)))
	return r.recording.Frames[index].Locations, nil
}

// BeginFrame implements interface
func (s *session) BeginFrame() error {
	return nil
}

// EndFrame implements interface
func (s *session) EndFrame(xr.FrameState, []xr.ProjectionView) error {
	s.runtime.mutex.Lock()
	s.runtime.ended++
	s.runtime.mutex.Unlock()
	return nil
}

// Destroy implements interface
func (s *session) Destroy() error {
	return s.End()
}

type swapchain struct {
	handle   xr.Handle
	images   []xr.Handle
	next     uint32
	acquired bool
}

// Handle implements interface
func (s *swapchain) Handle() xr.Handle {
	return s.handle
}

// Images implements interface
func (s *swapchain) Images() []xr.Handle {
	return s.images
}

// Acquire implements interface
func (s *swapchain) Acquire() (uint32, error) {
	if s.acquired {
		return 0, errors.New("playback: image already acquired")
	}
	s.acquired = true
	index := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return index, nil
}

// Wait implements interface
func (s *swapchain) Wait(time.Duration) error {
	return nil
}

// Release implements interface
func (s *swapchain) Release() error {
	if !s.acquired {
		return errors.New("playback: no image acquired")
	}
	s.acquired = false
	return nil
}

// Destroy implements interface
func (s *swapchain) Destroy() error {
	return nil
}
