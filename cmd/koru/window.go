package main

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/koruxr/camera"
	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/renderer"
	"github.com/devblok/koruxr/xr"
)

// window is the default surface, an SDL window filled with a colour
// that follows the head height
type window struct {
	window *sdl.Window
	width  uint32
	height uint32
}

func newWindow(cfg core.RendererConfiguration) (*window, error) {
	w, err := sdl.CreateWindow("KoruXR",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, err
	}
	return &window{window: w, width: cfg.ScreenWidth, height: cfg.ScreenHeight}, nil
}

// Extent implements interface
func (w *window) Extent() renderer.Extent {
	return renderer.Extent{Width: w.width, Height: w.height, Layers: 1}
}

// Acquire implements interface
func (w *window) Acquire() (renderer.Target, error) {
	return renderer.Target{Extent: w.Extent()}, nil
}

// Present implements interface
func (w *window) Present(_ xr.FrameState, cam *camera.Parameters) error {
	surface, err := w.window.GetSurface()
	if err != nil {
		return err
	}

	var shade uint8 = 32
	if cam != nil && len(cam.Eyes) > 0 {
		height := cam.Eyes[0].Pose.Position.Y()
		if height < 0 {
			height = 0
		} else if height > 2 {
			height = 2
		}
		shade = uint8(height * 127)
	}
	if err := surface.FillRect(nil, sdl.MapRGB(surface.Format, shade/2, shade/2, shade)); err != nil {
		return err
	}
	return w.window.UpdateSurface()
}

// Destroy implements interface
func (w *window) Destroy() {
	w.window.Destroy()
}
