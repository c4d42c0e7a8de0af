package renderer

import (
	"fmt"
	"time"

	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/device"
	"github.com/devblok/koruxr/xr"
)

// BridgeConfiguration describes what the renderer asks of an XR
// resource context when one is present
type BridgeConfiguration struct {
	Backend device.Backend
	Format  device.Format
	Layout  xr.Layout

	// ImageTimeout bounds the wait for a swapchain image
	ImageTimeout time.Duration
}

// NewBridgeConfiguration parses the engine's XR configuration
func NewBridgeConfiguration(cfg core.XRConfiguration) (BridgeConfiguration, error) {
	backend, err := device.ParseBackend(cfg.Backend)
	if err != nil {
		return BridgeConfiguration{}, fmt.Errorf("%s: %w", core.EnvXRBackend, err)
	}
	format, err := device.ParseFormat(cfg.Format)
	if err != nil {
		return BridgeConfiguration{}, fmt.Errorf("%s: %w", core.EnvXRFormat, err)
	}
	layout, err := xr.ParseLayout(cfg.Layout)
	if err != nil {
		return BridgeConfiguration{}, fmt.Errorf("%s: %w", core.EnvXRLayout, err)
	}

	timeout := cfg.FrameTimeout
	if timeout <= 0 {
		timeout = xr.DefaultFrameTimeout
	}
	return BridgeConfiguration{
		Backend:      backend,
		Format:       format,
		Layout:       layout,
		ImageTimeout: timeout,
	}, nil
}
