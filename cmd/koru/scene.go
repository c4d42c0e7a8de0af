package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/camera"
	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/model"
	"github.com/devblok/koruxr/renderer"
	"github.com/devblok/koruxr/tracking"
	"github.com/devblok/koruxr/xr"
)

// scene draws a gizmo on each controller. Without a graphics
// pipeline behind it, drawing is computing the uniforms.
type scene struct {
	cfg       core.RendererConfiguration
	followers []*model.Follower
}

func newScene(cfg core.RendererConfiguration) *scene {
	return &scene{
		cfg: cfg,
		followers: []*model.Follower{
			model.NewFollower(xr.LeftController),
			model.NewFollower(xr.RightController),
		},
	}
}

// DefaultSurface implements interface
func (s *scene) DefaultSurface() (renderer.Surface, error) {
	return newWindow(s.cfg)
}

// Render implements interface
func (s *scene) Render(target renderer.Target, cam *camera.Parameters, snapshot *tracking.Snapshot) error {
	for _, f := range s.followers {
		f.Follow(snapshot)
		uniforms := model.EyeUniforms(f, cam)
		log.WithFields(log.Fields{
			"frame":    snapshot.Frame,
			"device":   f.Device.String(),
			"tracked":  f.Tracked(),
			"image":    target.Index,
			"uniforms": len(uniforms),
			"vertices": len(f.Vertices()),
		}).Trace("scene: drawn")
	}
	return nil
}
