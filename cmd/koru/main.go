package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/pipeline"
	"github.com/devblok/koruxr/playback"
	"github.com/devblok/koruxr/xr"
)

func init() {
	runtime.LockOSThread()
}

var (
	envFiles  = flag.StringSlice("env", nil, ".env files to load the configuration from")
	recording = flag.String("recording", "", "tracking recording to replay as the XR runtime")
	loop      = flag.Bool("loop", false, "replay the recording in a loop")
	record    = flag.String("record", "", "file the tracked poses are recorded to")
	frames    = flag.Uint64("frames", 0, "stop after this many frames, 0 runs until the window is closed")
)

// newContext replays a recording as the XR runtime and publishes
// its resource context into the World
func newContext(world *core.World, cfg core.Configuration) error {
	rec, err := playback.LoadFile(cfg.XR.Recording)
	if err != nil {
		return err
	}
	rt := playback.NewRuntime(rec, playback.RuntimeOptions{
		Loop:            *loop,
		Realtime:        true,
		SwapchainImages: cfg.Renderer.SwapchainSize,
	})
	ctx, err := xr.NewResourceContext(rt, xr.Configuration{
		Application:  xr.DefaultApplicationInfo,
		FrameTimeout: cfg.XR.FrameTimeout,
	})
	if err != nil {
		return err
	}
	ctx.PollEvents()
	if err := core.Insert(world, ctx); err != nil {
		ctx.Destroy()
		return err
	}
	return nil
}

// quit drains SDL events, reporting whether the window was closed
func quit() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch et := event.(type) {
		case *sdl.KeyboardEvent:
			if et.Keysym.Sym == sdl.K_ESCAPE {
				return true
			}
		case *sdl.QuitEvent:
			return true
		}
	}
	return false
}

func saveRecording(rec *playback.Recorder, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := rec.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func run() error {
	cfg, err := core.LoadConfiguration(*envFiles...)
	if err != nil {
		return err
	}
	if err := core.SetupLogging(cfg.Log); err != nil {
		return err
	}
	if *recording != "" {
		cfg.XR.Recording = *recording
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("sdl.Init(): %w", err)
	}
	defer sdl.Quit()

	world := core.NewWorld()
	if cfg.XR.Recording != "" {
		if err := newContext(world, cfg); err != nil {
			log.WithError(err).Warn("koru: no xr runtime, rendering to the window")
		}
	}
	// the pipeline takes the context over, views never change
	var views []xr.View
	if ctx, ok := core.Lookup[*xr.ResourceContext](world); ok {
		views = ctx.Views()
	}

	p, err := pipeline.New(world, cfg, newScene(cfg.Renderer))
	if err != nil {
		if ctx, ok := core.Remove[*xr.ResourceContext](world); ok {
			ctx.Destroy()
		}
		return err
	}
	log.WithFields(log.Fields{
		"binding": p.Bridge().Binding().String(),
		"world":   world.Kinds(),
	}).Info("koru: running")

	var recorder *playback.Recorder
	if *record != "" && views == nil {
		log.Warn("koru: nothing is tracked without an xr runtime, not recording")
	} else if *record != "" {
		recorder = playback.NewRecorder(playback.Header{
			Runtime:   "koru",
			FrameRate: cfg.Time.FramesPerSecond,
			Views:     views,
		})
		recorder.Attach(p.Registry())
	}

	var stepErr error
	for n := uint64(0); *frames == 0 || n < *frames; n++ {
		if quit() {
			break
		}
		if stepErr = p.Step(); stepErr != nil {
			break
		}
	}
	if errors.Is(stepErr, pipeline.ErrSessionLost) {
		log.WithError(stepErr).Info("koru: xr session ended")
		stepErr = nil
	}

	err = errors.Join(stepErr, p.Close())
	if recorder != nil {
		if recErr := saveRecording(recorder, *record); recErr != nil {
			err = errors.Join(err, recErr)
		} else {
			log.WithFields(log.Fields{"file": *record, "frames": recorder.Len()}).Info("koru: recording saved")
		}
	}
	return err
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.WithError(err).Fatal("koru: exited")
	}
}
