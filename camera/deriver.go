package camera

import (
	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/xr"
)

// Deriver turns head poses into camera parameters. It is driven by the
// frame loop only, the results are read through its Store.
type Deriver struct {
	views     []xr.View
	near, far float32
	viewports []Viewport
	store     *Store
	last      *Parameters
	holding   bool
}

// NewDeriver creates a deriver for the eyes of a view configuration.
// Viewports default to one recommended sized layer per eye.
func NewDeriver(views []xr.View, cfg core.XRConfiguration, store *Store) *Deriver {
	if store == nil {
		store = &Store{}
	}
	d := &Deriver{
		views: views,
		near:  cfg.Near,
		far:   cfg.Far,
		store: store,
	}
	desc := xr.DefaultSwapchainDescriptor(views, 0, xr.LayoutPerEye)
	d.viewports = Viewports(desc, len(views))
	return d
}

// Store returns where derived parameters are published
func (d *Deriver) Store() *Store {
	return d.store
}

// SetViewports changes where eyes are rendered from the next update on
func (d *Deriver) SetViewports(viewports []Viewport) {
	d.viewports = viewports
}

// Update derives the parameters for a frame. An invalid head pose
// keeps the last valid parameters unchanged. Before the first valid
// head pose there is nothing to keep and ok is false.
func (d *Deriver) Update(frame uint64, head xr.PoseSample) (params *Parameters, ok bool) {
	if !head.Valid {
		if !d.holding && d.last != nil {
			log.WithField("frame", frame).Debug("camera: head untracked, holding last camera")
		}
		d.holding = true
		return d.last, d.last != nil
	}
	d.holding = false

	headTransform := head.Pose.Transform()
	p := &Parameters{
		Frame: frame,
		Eyes:  make([]Eye, len(d.views)),
	}
	for i, v := range d.views {
		eyeTransform := headTransform.Mul4(v.Offset.Transform())
		eye := Eye{
			View:       eyeTransform.Inv(),
			Projection: Projection(v.Fov, d.near, d.far),
			Fov:        v.Fov,
			Pose:       poseOf(head.Pose, v.Offset),
		}
		if i < len(d.viewports) {
			eye.Viewport = d.viewports[i]
		}
		p.Eyes[i] = eye
	}

	d.last = p
	d.store.publish(p)
	return p, true
}

// poseOf composes an eye offset onto the head pose
func poseOf(head, offset xr.Pose) xr.Pose {
	orientation := head.Orientation.Normalize()
	return xr.Pose{
		Position:    head.Position.Add(orientation.Rotate(offset.Position)),
		Orientation: orientation.Mul(offset.Orientation.Normalize()),
	}
}
