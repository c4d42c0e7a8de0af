package xr

import (
	"time"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Pose is a position and orientation in the tracking space
type Pose struct {
	Position    glm.Vec3
	Orientation glm.Quat
}

// IdentityPose sits at the origin without rotation
var IdentityPose = Pose{Orientation: glm.QuatIdent()}

// Transform returns the pose as a world transform,
// rotation applied first, then translation.
func (p Pose) Transform() glm.Mat4 {
	return glm.Translate3D(p.Position.X(), p.Position.Y(), p.Position.Z()).Mul4(p.Orientation.Normalize().Mat4())
}

// PoseSample is the tracking state of one device for one frame.
// Samples are values and never change after they are produced.
//
// When Valid is false the device is untracked or stale: Pose holds
// the last known pose and must not be relied on.
type PoseSample struct {
	Device TrackedDevice
	Pose   Pose

	// Velocities are nil when the platform does not report them
	LinearVelocity  *glm.Vec3
	AngularVelocity *glm.Vec3

	Valid     bool
	Timestamp time.Time
}

// Stale returns a copy of the sample marked invalid at the given time,
// keeping the last known pose.
func (s PoseSample) Stale(at time.Time) PoseSample {
	return PoseSample{
		Device:    s.Device,
		Pose:      s.Pose,
		Valid:     false,
		Timestamp: at,
	}
}

// DeviceLocation is what the platform reports for one device
// when it is located at a display time.
type DeviceLocation struct {
	Device          TrackedDevice
	Pose            Pose
	LinearVelocity  *glm.Vec3
	AngularVelocity *glm.Vec3

	// Tracked is false when the platform has no current pose
	Tracked bool
}

// Sample converts the location into a PoseSample taken at the given time
func (l DeviceLocation) Sample(at time.Time) PoseSample {
	return PoseSample{
		Device:          l.Device,
		Pose:            l.Pose,
		LinearVelocity:  l.LinearVelocity,
		AngularVelocity: l.AngularVelocity,
		Valid:           l.Tracked,
		Timestamp:       at,
	}
}
