package renderer_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/koruxr/camera"
	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/device"
	"github.com/devblok/koruxr/renderer"
	"github.com/devblok/koruxr/xr"
	"github.com/devblok/koruxr/xr/xrtest"
)

type windowSurface struct {
	acquired  int
	presented int
	destroyed int
}

func (w *windowSurface) Extent() renderer.Extent {
	return renderer.Extent{Width: 800, Height: 600, Layers: 1}
}

func (w *windowSurface) Acquire() (renderer.Target, error) {
	w.acquired++
	return renderer.Target{Extent: w.Extent()}, nil
}

func (w *windowSurface) Present(xr.FrameState, *camera.Parameters) error {
	w.presented++
	return nil
}

func (w *windowSurface) Destroy() {
	w.destroyed++
}

type fixture struct {
	world   *core.World
	runtime *xrtest.Runtime
	context *xr.ResourceContext
	window  *windowSurface
	made    int
	bridge  *renderer.Bridge
}

func newFixture(c *qt.C, withContext bool, xrcfg core.XRConfiguration) *fixture {
	f := &fixture{
		world:   core.NewWorld(),
		runtime: xrtest.New(),
		window:  &windowSurface{},
	}
	f.context = xrtest.NewContext(c, f.runtime)
	c.Cleanup(func() {
		f.bridge.Shutdown()
		f.context.Destroy()
	})
	if withContext {
		c.Assert(core.Insert(f.world, f.context), qt.IsNil)
	}

	cfg, err := renderer.NewBridgeConfiguration(xrcfg)
	c.Assert(err, qt.IsNil)
	f.bridge = renderer.NewBridge(f.world, cfg, func() (renderer.Surface, error) {
		f.made++
		return f.window, nil
	})
	return f
}

func defaultXR() core.XRConfiguration {
	return core.DefaultConfiguration().XR
}

func TestBridgeWithoutContextMakesNoXRCalls(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, false, defaultXR())
	before := f.runtime.TotalCalls()

	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateDefaultBound)
	c.Assert(f.bridge.Binding(), qt.Equals, renderer.BindingDefault)
	c.Assert(f.bridge.Surface(), qt.Equals, renderer.Surface(f.window))
	c.Assert(f.bridge.Swapchain(), qt.IsNil)
	c.Assert(f.runtime.TotalCalls(), qt.Equals, before)
	c.Assert(f.made, qt.Equals, 1)
}

func TestBridgeBindsXR(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, true, defaultXR())

	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateXRBound)
	c.Assert(f.bridge.Binding(), qt.Equals, renderer.BindingXR)
	c.Assert(f.made, qt.Equals, 0)

	desc := f.bridge.Swapchain().Descriptor()
	c.Assert(desc.Format, qt.Equals, device.FormatRGBA8Srgb)
	c.Assert(desc.ArrayLayers, qt.Equals, uint32(2))
	c.Assert(f.bridge.Surface().Extent(), qt.Equals, renderer.Extent{Width: 1440, Height: 1600, Layers: 2})

	rcs, scs := f.context.Outstanding()
	c.Assert(rcs, qt.Equals, 1)
	c.Assert(scs, qt.Equals, 1)
}

func TestBridgeFallsBackOnInvalidDescriptor(t *testing.T) {
	for _, test := range []struct {
		about   string
		prepare func(*xrtest.Runtime, *core.XRConfiguration)
	}{{
		about: "platform rejects the swapchain",
		prepare: func(rt *xrtest.Runtime, _ *core.XRConfiguration) {
			rt.FailSwapchain = xr.ErrInvalidDescriptor
		},
	}, {
		about: "format not supported",
		prepare: func(_ *xrtest.Runtime, cfg *core.XRConfiguration) {
			cfg.Format = "rgba16-float"
		},
	}} {
		t.Run(test.about, func(t *testing.T) {
			c := qt.New(t)
			cfg := defaultXR()
			f := newFixture(c, true, cfg)
			test.prepare(f.runtime, &cfg)
			bcfg, err := renderer.NewBridgeConfiguration(cfg)
			c.Assert(err, qt.IsNil)
			f.bridge = renderer.NewBridge(f.world, bcfg, func() (renderer.Surface, error) {
				f.made++
				return f.window, nil
			})

			c.Assert(f.bridge.Initialise(), qt.IsNil)
			c.Assert(f.bridge.State(), qt.Equals, renderer.StateDefaultBound)
			c.Assert(f.runtime.Calls("BindGraphics"), qt.Equals, 1)
			c.Assert(f.made, qt.Equals, 1)

			// the rendering context was released again
			rcs, scs := f.context.Outstanding()
			c.Assert(rcs, qt.Equals, 0)
			c.Assert(scs, qt.Equals, 0)
		})
	}
}

func TestBridgeFallsBackOnUnsupportedBackend(t *testing.T) {
	c := qt.New(t)
	cfg := defaultXR()
	cfg.Backend = "opengl"
	f := newFixture(c, true, cfg)

	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateDefaultBound)
	c.Assert(f.runtime.Calls("CreateSwapchain"), qt.Equals, 0)
}

func TestBridgeFallsBackWhenSessionNotReady(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, true, defaultXR())
	f.runtime.Push(xr.StateChanged(xr.SessionStopping))
	f.context.PollEvents()

	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateDefaultBound)
	c.Assert(f.runtime.Calls("BindGraphics"), qt.Equals, 0)
}

func TestBridgeInitialiseIsIdempotent(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, true, defaultXR())

	c.Assert(f.bridge.Initialise(), qt.IsNil)
	swapchain := f.bridge.Swapchain()
	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.Start(), qt.IsNil)
	c.Assert(f.bridge.Initialise(), qt.IsNil)

	c.Assert(f.bridge.Swapchain(), qt.Equals, swapchain)
	c.Assert(f.runtime.Calls("CreateSession"), qt.Equals, 1)
	c.Assert(f.runtime.Calls("CreateSwapchain"), qt.Equals, 1)
	c.Assert(f.world.Kinds(), qt.HasLen, 1)
	_, scs := f.context.Outstanding()
	c.Assert(scs, qt.Equals, 1)
}

func TestBridgeInitialiseAfterShutdown(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, true, defaultXR())

	c.Assert(f.bridge.Initialise(), qt.IsNil)
	first := f.bridge.Swapchain()
	f.bridge.Shutdown()
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateTerminated)

	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateXRBound)
	c.Assert(f.bridge.Swapchain(), qt.Not(qt.Equals), first)
	c.Assert(f.runtime.Calls("CreateSwapchain"), qt.Equals, 2)
	c.Assert(f.runtime.Calls("CreateSession"), qt.Equals, 1)
	rcs, scs := f.context.Outstanding()
	c.Assert(rcs, qt.Equals, 1)
	c.Assert(scs, qt.Equals, 1)

	// without a context in the World the second probe binds the window
	core.Remove[*xr.ResourceContext](f.world)
	f.bridge.Shutdown()
	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.Binding(), qt.Equals, renderer.BindingDefault)
	c.Assert(f.made, qt.Equals, 1)
}

func TestBridgeDefaultSurfaceError(t *testing.T) {
	c := qt.New(t)
	b := renderer.NewBridge(core.NewWorld(), renderer.BridgeConfiguration{}, func() (renderer.Surface, error) {
		return nil, errors.New("no display")
	})

	c.Assert(b.Initialise(), qt.ErrorMatches, "renderer: default surface: no display")
	c.Assert(b.State(), qt.Equals, renderer.StateUninitialized)
	c.Assert(errors.Is(b.Start(), renderer.ErrState), qt.IsTrue)
}

func TestBridgePresentsEyes(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, true, defaultXR())
	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.Start(), qt.IsNil)
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateRunning)

	d := camera.NewDeriver(f.context.Views(), defaultXR(), nil)
	d.SetViewports(camera.Viewports(f.bridge.Swapchain().Descriptor(), 2))
	cam, ok := d.Update(1, xr.PoseSample{
		Device: xr.Head,
		Pose:   xr.Pose{Position: glm.Vec3{0, 1.6, 0}, Orientation: glm.QuatIdent()},
		Valid:  true,
	})
	c.Assert(ok, qt.IsTrue)

	surface := f.bridge.Surface()
	frame := xr.FrameState{ShouldRender: true, PredictedDisplayPeriod: xrtest.FrameDuration}
	for i := uint32(0); i < 4; i++ {
		target, err := surface.Acquire()
		c.Assert(err, qt.IsNil)
		c.Assert(target.Index, qt.Equals, i%3)
		c.Assert(target.Image, qt.Equals, f.bridge.Swapchain().Images()[i%3])
		c.Assert(surface.Present(frame, cam), qt.IsNil)
	}

	c.Assert(f.runtime.Calls("BeginFrame"), qt.Equals, 4)
	c.Assert(f.runtime.Calls("ReleaseImage"), qt.Equals, 4)
	submitted := f.runtime.Submitted()
	c.Assert(submitted, qt.HasLen, 4)
	views := submitted[3]
	c.Assert(views, qt.HasLen, 2)
	for i, v := range views {
		c.Assert(v.Swapchain, qt.Equals, f.bridge.Swapchain().Handle())
		c.Assert(v.ImageArrayIndex, qt.Equals, uint32(i))
		c.Assert(v.Rect, qt.Equals, xr.Rect{Width: 1440, Height: 1600})
		c.Assert(v.Pose, qt.Equals, cam.Eyes[i].Pose)
	}

	// nothing to show without a camera, the frame is still ended
	_, err := surface.Acquire()
	c.Assert(err, qt.IsNil)
	c.Assert(surface.Present(frame, nil), qt.IsNil)
	c.Assert(f.runtime.Submitted()[4], qt.HasLen, 0)
}

func TestBridgeShutdownOrder(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, true, defaultXR())
	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.Start(), qt.IsNil)

	_, err := f.bridge.Surface().Acquire()
	c.Assert(err, qt.IsNil)

	f.bridge.Shutdown()
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateTerminated)
	c.Assert(f.bridge.Binding(), qt.Equals, renderer.BindingXR)
	c.Assert(f.bridge.Surface(), qt.IsNil)
	c.Assert(f.runtime.Destroyed(), qt.DeepEquals, []string{"swapchain"})
	c.Assert(f.runtime.Calls("ReleaseImage"), qt.Equals, 1)

	rcs, scs := f.context.Outstanding()
	c.Assert(rcs, qt.Equals, 0)
	c.Assert(scs, qt.Equals, 0)

	f.bridge.Shutdown()
	c.Assert(f.runtime.Calls("DestroySwapchain"), qt.Equals, 1)

	f.context.Destroy()
	c.Assert(f.runtime.Destroyed(), qt.DeepEquals, []string{"swapchain", "session", "instance"})
}

func TestBridgeDefaultShutdown(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, false, defaultXR())
	c.Assert(f.bridge.Initialise(), qt.IsNil)

	f.bridge.Shutdown()
	f.bridge.Shutdown()
	c.Assert(f.window.destroyed, qt.Equals, 1)
	c.Assert(f.bridge.Observe(), qt.IsFalse)
}

func TestBridgeObservesSessionLoss(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, true, defaultXR())
	c.Assert(f.bridge.Initialise(), qt.IsNil)
	c.Assert(f.bridge.Start(), qt.IsNil)

	c.Assert(f.bridge.Observe(), qt.IsFalse)
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateRunning)

	f.runtime.Push(xr.StateChanged(xr.SessionLossPending))
	f.context.PollEvents()

	c.Assert(f.bridge.Observe(), qt.IsTrue)
	c.Assert(f.bridge.State(), qt.Equals, renderer.StateTerminated)
	c.Assert(f.runtime.Destroyed(), qt.DeepEquals, []string{"swapchain"})

	// only the first observation reacts
	c.Assert(f.bridge.Observe(), qt.IsFalse)

	f.context.Destroy()
	c.Assert(f.runtime.Destroyed(), qt.DeepEquals, []string{"swapchain", "session", "instance"})
}

func TestBridgeConfigurationErrors(t *testing.T) {
	c := qt.New(t)
	cfg := defaultXR()
	cfg.Format = "yuv"
	_, err := renderer.NewBridgeConfiguration(cfg)
	c.Assert(err, qt.ErrorMatches, `KORU_XR_FORMAT: unknown image format "yuv"`)

	cfg = defaultXR()
	cfg.Layout = "stacked"
	_, err = renderer.NewBridgeConfiguration(cfg)
	c.Assert(err, qt.ErrorMatches, `KORU_XR_LAYOUT: unknown swapchain layout "stacked"`)

	cfg = defaultXR()
	cfg.Layout = "side-by-side"
	bcfg, err := renderer.NewBridgeConfiguration(cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(bcfg.Layout, qt.Equals, xr.LayoutSingle)
	c.Assert(bcfg.Backend, qt.Equals, device.BackendVulkan)
}
