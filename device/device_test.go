package device_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/koruxr/device"
)

func TestParseBackend(t *testing.T) {
	c := qt.New(t)
	for name, want := range map[string]device.Backend{
		"vulkan":   device.BackendVulkan,
		"VK":       device.BackendVulkan,
		"opengl":   device.BackendOpenGL,
		"headless": device.BackendHeadless,
	} {
		got, err := device.ParseBackend(name)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, want)
	}

	_, err := device.ParseBackend("metal")
	c.Assert(err, qt.ErrorMatches, `unknown graphics backend "metal"`)
}

func TestParseFormatRoundTrip(t *testing.T) {
	c := qt.New(t)
	for _, f := range device.Formats() {
		got, err := device.ParseFormat(f.String())
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, f)
	}

	_, err := device.ParseFormat("r5g6b5")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestVulkanFormat(t *testing.T) {
	c := qt.New(t)
	seen := make(map[vk.Format]device.Format)
	for _, f := range device.Formats() {
		vf, err := device.VulkanFormat(f)
		c.Assert(err, qt.IsNil, qt.Commentf("%s", f))
		c.Assert(vf, qt.Not(qt.Equals), vk.FormatUndefined)
		_, dup := seen[vf]
		c.Assert(dup, qt.IsFalse, qt.Commentf("%s", f))
		seen[vf] = f
	}
	c.Assert(seen[vk.FormatB8g8r8a8Srgb], qt.Equals, device.FormatBGRA8Srgb)

	vf, err := device.VulkanFormat(device.FormatUndefined)
	c.Assert(err, qt.ErrorMatches, "format undefined has no vulkan equivalent")
	c.Assert(vf, qt.Equals, vk.FormatUndefined)
}
