package xr_test

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/koruxr/device"
	"github.com/devblok/koruxr/xr"
	"github.com/devblok/koruxr/xr/xrtest"
)

func recoverDangling(f func()) (dangling *xr.DanglingSwapchainError) {
	defer func() {
		if r := recover(); r != nil {
			dangling, _ = r.(*xr.DanglingSwapchainError)
		}
	}()
	f()
	return nil
}

func stereoDescriptor(c *qt.C, ctx *xr.ResourceContext) xr.SwapchainDescriptor {
	desc := xr.DefaultSwapchainDescriptor(ctx.Views(), device.FormatRGBA8Srgb, xr.LayoutPerEye)
	c.Assert(desc.Width, qt.Equals, uint32(1440))
	c.Assert(desc.Height, qt.Equals, uint32(1600))
	return desc
}

func TestNewResourceContextSessionFailure(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	rt.FailSession = errors.New("no headset")

	_, err := xr.NewResourceContext(rt, xr.Configuration{})
	c.Assert(err, qt.ErrorMatches, "xr: create session on xrtest: no headset")
	c.Assert(rt.Destroyed(), qt.DeepEquals, []string{"instance"})
}

func TestCreateRenderingContextSessionNotReady(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx, err := xr.NewResourceContext(rt, xr.Configuration{})
	c.Assert(err, qt.IsNil)

	_, err = ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(errors.Is(err, xr.ErrSessionNotReady), qt.IsTrue)
	c.Assert(rt.Calls("BindGraphics"), qt.Equals, 0)

	rt.Push(xr.StateChanged(xr.SessionReady))
	c.Assert(ctx.PollEvents(), qt.Equals, 1)
	c.Assert(ctx.State(), qt.Equals, xr.SessionReady)
	c.Assert(ctx.Running(), qt.IsTrue)
	c.Assert(rt.Calls("Begin"), qt.Equals, 1)

	rc, err := ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.IsNil)
	rc.Destroy()
	ctx.Destroy()
}

func TestCreateRenderingContextUnsupportedBackend(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx := xrtest.NewContext(t, rt)
	defer ctx.Destroy()

	_, err := ctx.CreateRenderingContext(device.BackendOpenGL)
	c.Assert(errors.Is(err, xr.ErrUnsupportedBackend), qt.IsTrue)

	rcs, scs := ctx.Outstanding()
	c.Assert(rcs, qt.Equals, 0)
	c.Assert(scs, qt.Equals, 0)
}

func TestCreateSwapchainInvalidDescriptor(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx := xrtest.NewContext(t, rt)
	rc, err := ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.IsNil)

	valid := stereoDescriptor(c, ctx)
	tests := []struct {
		about string
		edit  func(d *xr.SwapchainDescriptor)
	}{{
		about: "zero resolution",
		edit:  func(d *xr.SwapchainDescriptor) { d.Width = 0 },
	}, {
		about: "resolution above the maximum",
		edit:  func(d *xr.SwapchainDescriptor) { d.Height = 4000 },
	}, {
		about: "unsupported format",
		edit:  func(d *xr.SwapchainDescriptor) { d.Format = device.FormatRGBA16Float },
	}, {
		about: "unknown layout",
		edit:  func(d *xr.SwapchainDescriptor) { d.Layout = xr.Layout(7) },
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			desc := valid
			test.edit(&desc)
			_, err := ctx.CreateSwapchain(rc, desc)
			c.Assert(errors.Is(err, xr.ErrInvalidDescriptor), qt.IsTrue, qt.Commentf("%v", err))
		})
	}

	rt.FailSwapchain = errors.New("out of memory")
	_, err = ctx.CreateSwapchain(rc, valid)
	c.Assert(errors.Is(err, xr.ErrInvalidDescriptor), qt.IsTrue)

	_, scs := ctx.Outstanding()
	c.Assert(scs, qt.Equals, 0)
	rc.Destroy()
	ctx.Destroy()
}

func TestSwapchainLayouts(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx := xrtest.NewContext(t, rt)
	rc, err := ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.IsNil)

	perEye, err := ctx.CreateSwapchain(rc, stereoDescriptor(c, ctx))
	c.Assert(err, qt.IsNil)
	c.Assert(perEye.Descriptor().ArrayLayers, qt.Equals, uint32(2))
	c.Assert(perEye.Descriptor().SampleCount, qt.Equals, uint32(1))
	c.Assert(perEye.Images(), qt.HasLen, 3)

	single, err := ctx.CreateSwapchain(rc, xr.DefaultSwapchainDescriptor(ctx.Views(), device.FormatRGBA8Srgb, xr.LayoutSingle))
	c.Assert(err, qt.IsNil)
	c.Assert(single.Descriptor().Width, qt.Equals, uint32(2880))
	c.Assert(single.Descriptor().ArrayLayers, qt.Equals, uint32(1))

	perEye.Destroy()
	single.Destroy()
	rc.Destroy()
	ctx.Destroy()
}

func TestDestroyOrder(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx := xrtest.NewContext(t, rt)
	rc, err := ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.IsNil)
	sc, err := ctx.CreateSwapchain(rc, stereoDescriptor(c, ctx))
	c.Assert(err, qt.IsNil)

	sc.Destroy()
	sc.Destroy()
	rc.Destroy()
	rc.Destroy()
	ctx.Destroy()
	ctx.Destroy()

	c.Assert(rt.Destroyed(), qt.DeepEquals, []string{"swapchain", "session", "instance"})
	c.Assert(rt.Calls("End"), qt.Equals, 1)
}

func TestDestroyWithLiveSwapchainsPanics(t *testing.T) {
	c := qt.New(t)
	for live := 1; live <= 4; live++ {
		rt := xrtest.New()
		ctx := xrtest.NewContext(t, rt)
		rc, err := ctx.CreateRenderingContext(device.BackendVulkan)
		c.Assert(err, qt.IsNil)

		var swapchains []*xr.Swapchain
		for i := 0; i < live; i++ {
			sc, err := ctx.CreateSwapchain(rc, stereoDescriptor(c, ctx))
			c.Assert(err, qt.IsNil)
			swapchains = append(swapchains, sc)
		}

		// release all but one, in every position
		for i := 0; i < live-1; i++ {
			swapchains[i].Destroy()
		}

		dangling := recoverDangling(ctx.Destroy)
		c.Assert(dangling, qt.Not(qt.IsNil))
		c.Assert(dangling.Owner, qt.Equals, "resource context")
		c.Assert(dangling.Swapchains, qt.DeepEquals, []uint64{swapchains[live-1].ID()})

		dangling = recoverDangling(rc.Destroy)
		c.Assert(dangling, qt.Not(qt.IsNil))
		c.Assert(dangling.Owner, qt.Equals, "rendering context")

		// the native session survived the failed teardown
		c.Assert(rt.Calls("DestroySession"), qt.Equals, 0)

		swapchains[live-1].Destroy()
		c.Assert(recoverDangling(ctx.Destroy), qt.Not(qt.IsNil))
		rc.Destroy()
		c.Assert(recoverDangling(ctx.Destroy), qt.Equals, (*xr.DanglingSwapchainError)(nil))
	}
}

func TestShutdownExpiresCreation(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx := xrtest.NewContext(t, rt)
	rc, err := ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.IsNil)
	sc, err := ctx.CreateSwapchain(rc, stereoDescriptor(c, ctx))
	c.Assert(err, qt.IsNil)

	ctx.BeginShutdown()
	_, err = ctx.CreateSwapchain(rc, stereoDescriptor(c, ctx))
	c.Assert(err, qt.Equals, xr.ErrContextExpired)
	_, err = ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.Equals, xr.ErrContextExpired)

	// live resources keep working during shutdown
	index, err := sc.AcquireImage()
	c.Assert(err, qt.IsNil)
	c.Assert(index, qt.Equals, uint32(0))
	c.Assert(sc.ReleaseImage(), qt.IsNil)

	drained := make(chan error, 1)
	go func() {
		drained <- ctx.Drain(context.Background())
	}()

	select {
	case <-drained:
		c.Fatal("drained with a live swapchain")
	case <-time.After(20 * time.Millisecond):
	}

	sc.Destroy()
	rc.Destroy()
	c.Assert(<-drained, qt.IsNil)
	ctx.Destroy()
}

func TestDrainTimeout(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx := xrtest.NewContext(t, rt)
	rc, err := ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.IsNil)

	deadline, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	c.Assert(ctx.Drain(deadline), qt.Equals, context.DeadlineExceeded)

	rc.Destroy()
	c.Assert(ctx.Drain(context.Background()), qt.IsNil)
	ctx.Destroy()
}

func TestSwapchainFromOtherContext(t *testing.T) {
	c := qt.New(t)
	first := xrtest.NewContext(t, xrtest.New())
	second := xrtest.NewContext(t, xrtest.New())

	rc, err := first.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.IsNil)
	_, err = second.CreateSwapchain(rc, stereoDescriptor(c, second))
	c.Assert(err, qt.Equals, xr.ErrContextExpired)

	rc.Destroy()
	first.Destroy()
	second.Destroy()
}

func TestSessionLoss(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx := xrtest.NewContext(t, rt)
	rc, err := ctx.CreateRenderingContext(device.BackendVulkan)
	c.Assert(err, qt.IsNil)
	sc, err := ctx.CreateSwapchain(rc, stereoDescriptor(c, ctx))
	c.Assert(err, qt.IsNil)

	select {
	case <-ctx.Lost():
		c.Fatal("lost before any event")
	default:
	}

	rt.Push(xr.Event{Kind: xr.EventEventsLost, Lost: 3}, xr.StateChanged(xr.SessionLossPending))
	c.Assert(ctx.PollEvents(), qt.Equals, 2)

	select {
	case <-ctx.Lost():
	default:
		c.Fatal("loss not signalled")
	}
	c.Assert(ctx.Running(), qt.IsFalse)

	_, err = sc.AcquireImage()
	c.Assert(err, qt.Equals, xr.ErrContextExpired)
	_, _, err = ctx.Locate()
	c.Assert(errors.Is(err, xr.ErrSessionNotReady), qt.IsTrue)

	sc.Destroy()
	rc.Destroy()
	ctx.Destroy()
	c.Assert(rt.Destroyed(), qt.DeepEquals, []string{"swapchain", "session", "instance"})
}

func TestLocate(t *testing.T) {
	c := qt.New(t)
	rt := xrtest.New()
	ctx := xrtest.NewContext(t, rt)
	defer ctx.Destroy()

	rt.Script([]xr.DeviceLocation{
		{Device: xr.Head, Pose: xr.IdentityPose, Tracked: true},
		{Device: xr.GenericTracker(3), Pose: xr.IdentityPose, Tracked: true},
	})
	rt.FrameErrors[2] = xr.ErrFrameTimeout

	state, locations, err := ctx.Locate()
	c.Assert(err, qt.IsNil)
	c.Assert(state.PredictedDisplayTime, qt.Equals, xrtest.FrameDuration)
	c.Assert(state.ShouldRender, qt.IsTrue)
	c.Assert(locations, qt.HasLen, 2)

	_, _, err = ctx.Locate()
	c.Assert(err, qt.Equals, xr.ErrFrameTimeout)
}
