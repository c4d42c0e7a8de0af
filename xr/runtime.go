package xr

import (
	"time"

	"github.com/devblok/koruxr/device"
)

// Handle is an opaque native handle. Its only contract is identity,
// valid until the owner releases it.
type Handle uintptr

// ApplicationInfo describes the application to the platform
type ApplicationInfo struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
}

// DefaultApplicationInfo describes the engine
var DefaultApplicationInfo = ApplicationInfo{
	ApplicationName:    "KoruXR",
	ApplicationVersion: 1,
	EngineName:         "Koru3D",
	EngineVersion:      1,
}

// Fov is an asymmetric field of view, angles in radians.
// Left and Down are negative for a view centered on its axis.
type Fov struct {
	Left, Right, Up, Down float32
}

// View is the static description of one eye, as the platform
// recommends rendering it.
type View struct {
	RecommendedWidth  uint32
	RecommendedHeight uint32
	MaxWidth          uint32
	MaxHeight         uint32

	Fov Fov

	// Offset is the eye relative to the head pose
	Offset Pose
}

// FrameState is returned by the platform's frame wait
type FrameState struct {
	PredictedDisplayTime   time.Duration
	PredictedDisplayPeriod time.Duration
	ShouldRender           bool
}

// Rect is an image region in pixels
type Rect struct {
	X, Y          int32
	Width, Height int32
}

// ProjectionView tells the platform what was rendered for one eye
type ProjectionView struct {
	Pose            Pose
	Fov             Fov
	Swapchain       Handle
	ImageArrayIndex uint32
	Rect            Rect
}

// Runtime is the platform XR loader
type Runtime interface {
	// Name of the runtime, for diagnostics
	Name() string

	// CreateInstance connects to the platform
	CreateInstance(info ApplicationInfo) (Instance, error)
}

// Instance is a platform XR instance
type Instance interface {
	Handle() Handle

	// CreateSession creates a session for a head mounted display
	CreateSession() (Session, error)

	Destroy() error
}

// Session is a platform XR session. A Session is driven from one
// goroutine, the frame loop.
type Session interface {
	Handle() Handle

	// Views are the eyes of the view configuration
	Views() []View

	// BindGraphics negotiates a graphics binding for the backend.
	// Fails when the platform cannot render with it.
	BindGraphics(backend device.Backend) (device.Binding, error)

	// SwapchainFormats the platform supports for the backend,
	// in order of preference
	SwapchainFormats(backend device.Backend) []device.Format

	CreateSwapchain(binding device.Binding, desc SwapchainDescriptor) (NativeSwapchain, error)

	// PollEvent returns the next pending event, if any
	PollEvent() (Event, bool)

	// Begin and End start and stop the session's frame loop
	Begin() error
	End() error

	// WaitFrame blocks until the platform wants the next frame,
	// bounded by timeout
	WaitFrame(timeout time.Duration) (FrameState, error)

	// Locate returns the devices the platform knows of,
	// located at the given display time
	Locate(displayTime time.Duration) ([]DeviceLocation, error)

	BeginFrame() error
	EndFrame(state FrameState, views []ProjectionView) error

	Destroy() error
}

// NativeSwapchain is the platform's ring of presentable images
type NativeSwapchain interface {
	Handle() Handle
	Images() []Handle

	// Acquire returns the index of the image to render next
	Acquire() (uint32, error)

	// Wait blocks until the acquired image may be written
	Wait(timeout time.Duration) error

	// Release hands the image back for composition
	Release() error

	Destroy() error
}
