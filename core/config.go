package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
	XR       XRConfiguration
	Tracking TrackingConfiguration
	Log      LogConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// RendererConfiguration is used to configure the default window renderer
type RendererConfiguration struct {
	// SwapchainSize is the number of images of swapchains
	// the engine creates itself
	SwapchainSize uint32

	ScreenWidth  uint32
	ScreenHeight uint32
}

// XRConfiguration is used to configure the XR resources requested
// by the rendering subsystem. It does not turn XR on or off, that is
// decided by whether a resource context exists in the World.
type XRConfiguration struct {
	// Backend is the graphics backend name the renderer binds with
	Backend string

	// Format of the swapchain images, by name
	Format string

	// Layout is either "per-eye" or "single"
	Layout string

	// Near and Far clipping planes for the eye projections
	Near float32
	Far  float32

	// Recording is the path of a tracking recording to replay,
	// empty when no XR runtime is available
	Recording string

	// FrameTimeout bounds how long a frame wait may block
	FrameTimeout time.Duration
}

// TrackingConfiguration configures the tracked device registry
type TrackingConfiguration struct {
	// Devices are known from the start of a session,
	// by name: head, left, right or tracker/<index>
	Devices []string
}

// LogConfiguration configures the logger
type LogConfiguration struct {
	Level  string
	Format string
}

// DefaultConfiguration returns the configuration used when
// no environment overrides are present
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
		},
		Renderer: RendererConfiguration{
			ScreenWidth:   800,
			ScreenHeight:  600,
			SwapchainSize: 3,
		},
		XR: XRConfiguration{
			Backend:      "vulkan",
			Format:       "rgba8-srgb",
			Layout:       "per-eye",
			Near:         0.05,
			Far:          100,
			FrameTimeout: 100 * time.Millisecond,
		},
		Tracking: TrackingConfiguration{
			Devices: []string{"head", "left", "right"},
		},
		Log: LogConfiguration{
			Level:  "info",
			Format: "text",
		},
	}
}

// Environment keys read by LoadConfiguration
const (
	EnvFramesPerSecond = "KORU_FPS"
	EnvScreenWidth     = "KORU_SCREEN_WIDTH"
	EnvScreenHeight    = "KORU_SCREEN_HEIGHT"
	EnvSwapchainSize   = "KORU_SWAPCHAIN_SIZE"
	EnvXRBackend       = "KORU_XR_BACKEND"
	EnvXRFormat        = "KORU_XR_FORMAT"
	EnvXRLayout        = "KORU_XR_LAYOUT"
	EnvXRNear          = "KORU_XR_NEAR"
	EnvXRFar           = "KORU_XR_FAR"
	EnvXRRecording     = "KORU_XR_RECORDING"
	EnvXRFrameTimeout  = "KORU_XR_FRAME_TIMEOUT"
	EnvTrackedDevices  = "KORU_TRACKED_DEVICES"
	EnvLogLevel        = "KORU_LOG_LEVEL"
	EnvLogFormat       = "KORU_LOG_FORMAT"
)

// LoadConfiguration reads the configuration from the environment.
// Files are .env files loaded beforehand, they never override
// variables that are already set.
func LoadConfiguration(files ...string) (Configuration, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Configuration{}, fmt.Errorf("godotenv.Load(): %w", err)
		}
	}
	envy.Reload()

	cfg := DefaultConfiguration()
	var err error
	if cfg.Time.FramesPerSecond, err = envInt(EnvFramesPerSecond, cfg.Time.FramesPerSecond); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.ScreenWidth, err = envUint32(EnvScreenWidth, cfg.Renderer.ScreenWidth); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32(EnvScreenHeight, cfg.Renderer.ScreenHeight); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.SwapchainSize, err = envUint32(EnvSwapchainSize, cfg.Renderer.SwapchainSize); err != nil {
		return Configuration{}, err
	}
	if cfg.XR.Near, err = envFloat32(EnvXRNear, cfg.XR.Near); err != nil {
		return Configuration{}, err
	}
	if cfg.XR.Far, err = envFloat32(EnvXRFar, cfg.XR.Far); err != nil {
		return Configuration{}, err
	}
	if cfg.XR.FrameTimeout, err = envDuration(EnvXRFrameTimeout, cfg.XR.FrameTimeout); err != nil {
		return Configuration{}, err
	}
	cfg.XR.Backend = envy.Get(EnvXRBackend, cfg.XR.Backend)
	cfg.XR.Format = envy.Get(EnvXRFormat, cfg.XR.Format)
	cfg.XR.Layout = envy.Get(EnvXRLayout, cfg.XR.Layout)
	cfg.XR.Recording = envy.Get(EnvXRRecording, cfg.XR.Recording)
	cfg.Log.Level = envy.Get(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = envy.Get(EnvLogFormat, cfg.Log.Format)

	if devices := envy.Get(EnvTrackedDevices, ""); devices != "" {
		cfg.Tracking.Devices = nil
		for _, d := range strings.Split(devices, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.Tracking.Devices = append(cfg.Tracking.Devices, d)
			}
		}
	}

	if cfg.XR.Near <= 0 || cfg.XR.Far <= cfg.XR.Near {
		return Configuration{}, fmt.Errorf("%s/%s: need 0 < near < far, got %v and %v", EnvXRNear, EnvXRFar, cfg.XR.Near, cfg.XR.Far)
	}
	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envUint32(key string, def uint32) (uint32, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(n), nil
}

func envFloat32(key string, def float32) (float32, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return float32(f), nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
