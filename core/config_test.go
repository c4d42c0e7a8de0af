package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/koruxr/core"
)

func TestLoadConfigurationDefaults(t *testing.T) {
	c := qt.New(t)
	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg, qt.DeepEquals, core.DefaultConfiguration())
}

func TestLoadConfigurationEnvironment(t *testing.T) {
	c := qt.New(t)
	t.Setenv(core.EnvFramesPerSecond, "90")
	t.Setenv(core.EnvXRLayout, "single")
	t.Setenv(core.EnvXRNear, "0.1")
	t.Setenv(core.EnvXRFrameTimeout, "250ms")
	t.Setenv(core.EnvTrackedDevices, "head, tracker/3")
	t.Setenv(core.EnvSwapchainSize, "2")

	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 90)
	c.Assert(cfg.XR.Layout, qt.Equals, "single")
	c.Assert(cfg.XR.Near, qt.Equals, float32(0.1))
	c.Assert(cfg.XR.FrameTimeout, qt.Equals, 250*time.Millisecond)
	c.Assert(cfg.Tracking.Devices, qt.DeepEquals, []string{"head", "tracker/3"})
	c.Assert(cfg.Renderer.SwapchainSize, qt.Equals, uint32(2))
}

func TestLoadConfigurationFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "koru.env")
	c.Assert(os.WriteFile(path, []byte("KORU_SCREEN_WIDTH=1024\n"), 0o644), qt.IsNil)
	t.Cleanup(func() { os.Unsetenv(core.EnvScreenWidth) })

	cfg, err := core.LoadConfiguration(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(1024))
}

func TestLoadConfigurationMalformed(t *testing.T) {
	c := qt.New(t)
	t.Setenv(core.EnvScreenHeight, "tall")

	_, err := core.LoadConfiguration()
	c.Assert(err, qt.ErrorMatches, "KORU_SCREEN_HEIGHT: .*")
}

func TestLoadConfigurationClipPlanes(t *testing.T) {
	c := qt.New(t)
	t.Setenv(core.EnvXRFar, "0.01")

	_, err := core.LoadConfiguration()
	c.Assert(err, qt.ErrorMatches, "KORU_XR_NEAR/KORU_XR_FAR: .*")
}

func TestTimeInterval(t *testing.T) {
	c := qt.New(t)
	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 100})
	defer tm.Stop()
	c.Assert(tm.Interval(), qt.Equals, 10*time.Millisecond)

	tm.WaitFrame()
	tm.WaitFrame()
	c.Assert(tm.Frames(), qt.Equals, uint64(2))
}
