package xr

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceKind is the role of a tracked device
type DeviceKind int

// Tracked device roles
const (
	KindHead DeviceKind = iota
	KindLeftController
	KindRightController
	KindGenericTracker
)

// TrackedDevice identifies a tracked physical device for the
// duration of a session. Two values are equal when kind and index
// are, so it can be used as a map key. Index is only meaningful
// for generic trackers and zero otherwise.
type TrackedDevice struct {
	Kind  DeviceKind
	Index uint32
}

// Well known devices
var (
	Head            = TrackedDevice{Kind: KindHead}
	LeftController  = TrackedDevice{Kind: KindLeftController}
	RightController = TrackedDevice{Kind: KindRightController}
)

// GenericTracker identifies the generic tracker with the given index
func GenericTracker(index uint32) TrackedDevice {
	return TrackedDevice{Kind: KindGenericTracker, Index: index}
}

func (d TrackedDevice) String() string {
	switch d.Kind {
	case KindHead:
		return "head"
	case KindLeftController:
		return "left"
	case KindRightController:
		return "right"
	case KindGenericTracker:
		return "tracker/" + strconv.FormatUint(uint64(d.Index), 10)
	}
	return fmt.Sprintf("unknown(%d)", d.Kind)
}

// Less orders devices by kind, then index
func (d TrackedDevice) Less(o TrackedDevice) bool {
	if d.Kind != o.Kind {
		return d.Kind < o.Kind
	}
	return d.Index < o.Index
}

// ParseTrackedDevice is the inverse of TrackedDevice.String
func ParseTrackedDevice(s string) (TrackedDevice, error) {
	switch s {
	case "head":
		return Head, nil
	case "left":
		return LeftController, nil
	case "right":
		return RightController, nil
	}
	if rest, ok := strings.CutPrefix(s, "tracker/"); ok {
		index, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return TrackedDevice{}, fmt.Errorf("tracked device %q: %w", s, err)
		}
		return GenericTracker(uint32(index)), nil
	}
	return TrackedDevice{}, fmt.Errorf("unknown tracked device %q", s)
}
