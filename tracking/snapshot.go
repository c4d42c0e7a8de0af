package tracking

import (
	"sort"

	"github.com/devblok/koruxr/xr"
)

// Snapshot is the set of poses published for one frame. Every sample
// in it was captured by the same poll. A Snapshot is never modified
// after it is published, readers may keep it for as long as they like.
type Snapshot struct {
	Frame      uint64
	FrameState xr.FrameState
	samples    map[xr.TrackedDevice]xr.PoseSample
}

// Sample returns the latest sample of a device
func (s *Snapshot) Sample(device xr.TrackedDevice) (xr.PoseSample, bool) {
	if s == nil {
		return xr.PoseSample{}, false
	}
	sample, ok := s.samples[device]
	return sample, ok
}

// Len is the number of devices in the snapshot
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.samples)
}

// Devices lists the devices of the snapshot, head first
func (s *Snapshot) Devices() []xr.TrackedDevice {
	if s == nil {
		return nil
	}
	devices := make([]xr.TrackedDevice, 0, len(s.samples))
	for d := range s.samples {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Less(devices[j]) })
	return devices
}

// Samples returns the samples ordered like Devices
func (s *Snapshot) Samples() []xr.PoseSample {
	devices := s.Devices()
	samples := make([]xr.PoseSample, len(devices))
	for i, d := range devices {
		samples[i] = s.samples[d]
	}
	return samples
}
