// Package device describes the graphics backends the engine can render
// with and the rendering devices behind them.
package device

import (
	"fmt"
	"strings"
)

// Backend identifies a graphics API
type Backend int

// Known graphics backends
const (
	BackendUnknown Backend = iota
	BackendVulkan
	BackendOpenGL
	BackendHeadless
)

func (b Backend) String() string {
	switch b {
	case BackendVulkan:
		return "vulkan"
	case BackendOpenGL:
		return "opengl"
	case BackendHeadless:
		return "headless"
	}
	return "unknown"
}

// ParseBackend returns the Backend for a name as used in configuration
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "vulkan", "vk":
		return BackendVulkan, nil
	case "opengl", "gl":
		return BackendOpenGL, nil
	case "headless", "none":
		return BackendHeadless, nil
	}
	return BackendUnknown, fmt.Errorf("unknown graphics backend %q", name)
}

// Format is a backend independent image format
type Format int

// Image formats usable for swapchains
const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatRGBA16Float
)

// Formats lists every known image format
func Formats() []Format {
	return []Format{FormatRGBA8Unorm, FormatRGBA8Srgb, FormatBGRA8Unorm, FormatBGRA8Srgb, FormatRGBA16Float}
}

var formatNames = map[Format]string{
	FormatRGBA8Unorm:  "rgba8-unorm",
	FormatRGBA8Srgb:   "rgba8-srgb",
	FormatBGRA8Unorm:  "bgra8-unorm",
	FormatBGRA8Srgb:   "bgra8-srgb",
	FormatRGBA16Float: "rgba16-float",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "undefined"
}

// ParseFormat returns the Format for a name as used in configuration
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(name)
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown image format %q", name)
}

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint64
}

// Device describes a non-concrete rendering device
type Device interface {
	Backend() Backend
	PhysicalDevices() []PhysicalDeviceInfo
	Destroy()
}

// Binding is the graphics binding negotiated with an XR runtime.
// Handles are native and owned by whoever created them, the
// runtime picks the physical device the session renders with.
type Binding struct {
	Backend        Backend
	Instance       uintptr
	PhysicalDevice uintptr
	Device         uintptr
	QueueFamily    uint32
	QueueIndex     uint32
}
