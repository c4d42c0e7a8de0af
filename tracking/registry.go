// Package tracking keeps the poses of tracked devices. Poses are
// polled from the platform once per frame and published as one
// immutable Snapshot, readers on any goroutine see either the whole
// frame or the previous one.
package tracking

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/core"
	"github.com/devblok/koruxr/xr"
)

// Source is where poses come from, usually an *xr.ResourceContext.
// Locate blocks until the platform paces the next frame.
type Source interface {
	Locate() (xr.FrameState, []xr.DeviceLocation, error)
}

// Registry is the single point of truth for device poses.
// Poll and Update are called by the frame loop only; Snapshot
// and Sample may be called from anywhere.
type Registry struct {
	polling atomic.Bool
	latest  atomic.Pointer[Snapshot]

	// owned by the polling goroutine
	known map[xr.TrackedDevice]xr.PoseSample

	writeMutex  sync.Mutex
	state       xr.FrameState
	frame       uint64
	subscribers []func(*Snapshot)

	now func() time.Time
}

// NewRegistry creates a registry. Devices named in the configuration
// are known from the start and reported as untracked until located.
func NewRegistry(cfg core.TrackingConfiguration) (*Registry, error) {
	r := &Registry{
		known: make(map[xr.TrackedDevice]xr.PoseSample),
		now:   time.Now,
	}
	for _, name := range cfg.Devices {
		d, err := xr.ParseTrackedDevice(name)
		if err != nil {
			return nil, err
		}
		r.known[d] = xr.PoseSample{Device: d, Pose: xr.IdentityPose}
	}
	return r, nil
}

// Poll waits for the next frame and returns one sample per known
// device. Devices the platform stops reporting stay in the result,
// marked invalid with their last known pose. A failed or timed out
// frame wait is not an error, every device is reported stale.
//
// Poll must not be called concurrently, doing so panics.
func (r *Registry) Poll(src Source) []xr.PoseSample {
	if !r.polling.CompareAndSwap(false, true) {
		panic("tracking: concurrent Poll")
	}
	defer r.polling.Store(false)

	state, locations, err := src.Locate()
	now := r.now()

	r.writeMutex.Lock()
	r.state = state
	r.writeMutex.Unlock()

	located := make(map[xr.TrackedDevice]bool, len(locations))
	if err != nil {
		log.WithError(err).Debug("tracking: frame without poses")
	} else {
		for _, loc := range locations {
			sample := loc.Sample(now)
			previous, known := r.known[loc.Device]
			if !loc.Tracked && known {
				sample = previous.Stale(now)
			}
			if !known {
				log.WithField("device", loc.Device).Info("tracking: new device")
			}
			r.known[loc.Device] = sample
			located[loc.Device] = true
		}
	}

	samples := make([]xr.PoseSample, 0, len(r.known))
	for d, previous := range r.known {
		if !located[d] {
			if previous.Valid {
				log.WithField("device", d).Debug("tracking: device lost")
			}
			r.known[d] = previous.Stale(now)
		}
		samples = append(samples, r.known[d])
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Device.Less(samples[j].Device) })
	return samples
}

// Update publishes samples as the next frame's snapshot. Devices not
// in samples keep their previous sample. Readers never observe a
// partially applied update.
func (r *Registry) Update(samples []xr.PoseSample) *Snapshot {
	r.writeMutex.Lock()
	defer r.writeMutex.Unlock()

	previous := r.latest.Load()
	r.frame++
	next := &Snapshot{
		Frame:      r.frame,
		FrameState: r.state,
		samples:    make(map[xr.TrackedDevice]xr.PoseSample, previous.Len()+len(samples)),
	}
	if previous != nil {
		for d, s := range previous.samples {
			next.samples[d] = s
		}
	}
	for _, s := range samples {
		next.samples[s.Device] = s
	}
	r.latest.Store(next)

	for _, fn := range r.subscribers {
		fn(next)
	}
	return next
}

// Snapshot returns the latest published frame, nil before the first Update
func (r *Registry) Snapshot() *Snapshot {
	return r.latest.Load()
}

// Sample returns the latest sample of a device
func (r *Registry) Sample(device xr.TrackedDevice) (xr.PoseSample, bool) {
	return r.latest.Load().Sample(device)
}

// Subscribe registers fn to be called with every published snapshot,
// on the goroutine calling Update.
func (r *Registry) Subscribe(fn func(*Snapshot)) {
	r.writeMutex.Lock()
	defer r.writeMutex.Unlock()
	r.subscribers = append(r.subscribers, fn)
}
