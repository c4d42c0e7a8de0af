package model

import (
	"sync"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/koruxr/camera"
	"github.com/devblok/koruxr/tracking"
	"github.com/devblok/koruxr/xr"
)

// Object represents the engine supported model
type Object interface {

	// SetPosition sets the object's current position in space.
	// Has to be thread-safe
	SetPosition(glm.Mat4)

	// Position gets the object's current position in space.
	// Has to be thread-safe
	Position() glm.Mat4

	// SetRotation sets the object's rotation matrix.
	// Has to be thread-safe
	SetRotation(glm.Mat4)

	// Rotation gets the object's rotation matrix.
	// Has to be thread-safe
	Rotation() glm.Mat4

	// Vertices returns the vertices for Renderer use
	Vertices() []Vertex
}

// Vertex is a model vertex
type Vertex struct {
	Pos   glm.Vec3
	Color glm.Vec4
}

// Uniform defines a model-view-projection object
type Uniform struct {
	Model      glm.Mat4
	View       glm.Mat4
	Projection glm.Mat4
}

// Transform is the model matrix of an object
func Transform(o Object) glm.Mat4 {
	return o.Position().Mul4(o.Rotation())
}

// EyeUniforms builds one uniform per eye for an object.
// There are none before the first camera is derived.
func EyeUniforms(o Object, cam *camera.Parameters) []Uniform {
	if cam == nil {
		return nil
	}
	m := Transform(o)
	uniforms := make([]Uniform, len(cam.Eyes))
	for i, eye := range cam.Eyes {
		uniforms[i] = Uniform{
			Model:      m,
			View:       eye.View,
			Projection: eye.Projection,
		}
	}
	return uniforms
}

// axes is a line list gizmo, one colored line per axis
var axes = []Vertex{
	{Pos: glm.Vec3{0, 0, 0}, Color: glm.Vec4{1, 0, 0, 1}},
	{Pos: glm.Vec3{0.1, 0, 0}, Color: glm.Vec4{1, 0, 0, 1}},
	{Pos: glm.Vec3{0, 0, 0}, Color: glm.Vec4{0, 1, 0, 1}},
	{Pos: glm.Vec3{0, 0.1, 0}, Color: glm.Vec4{0, 1, 0, 1}},
	{Pos: glm.Vec3{0, 0, 0}, Color: glm.Vec4{0, 0, 1, 1}},
	{Pos: glm.Vec3{0, 0, 0.1}, Color: glm.Vec4{0, 0, 1, 1}},
}

// Follower is an Object attached to a tracked device, such as a
// controller model. While the device is untracked it stays where
// it was last seen.
type Follower struct {
	Device xr.TrackedDevice

	// Offset is the object relative to the device pose
	Offset xr.Pose

	mutex    sync.RWMutex
	position glm.Mat4
	rotation glm.Mat4
	tracked  bool
	vertices []Vertex
}

// NewFollower creates an object following device, drawn as an axis gizmo
func NewFollower(device xr.TrackedDevice) *Follower {
	return &Follower{
		Device:   device,
		Offset:   xr.IdentityPose,
		position: glm.Ident4(),
		rotation: glm.Ident4(),
		vertices: axes,
	}
}

// Follow moves the object to its device's pose in the snapshot.
// It returns whether the device was tracked.
func (f *Follower) Follow(snapshot *tracking.Snapshot) bool {
	sample, ok := snapshot.Sample(f.Device)
	if !ok || !sample.Valid {
		f.mutex.Lock()
		f.tracked = false
		f.mutex.Unlock()
		return false
	}

	orientation := sample.Pose.Orientation.Normalize()
	position := sample.Pose.Position.Add(orientation.Rotate(f.Offset.Position))
	rotation := orientation.Mul(f.Offset.Orientation.Normalize())

	f.mutex.Lock()
	f.position = glm.Translate3D(position.X(), position.Y(), position.Z())
	f.rotation = rotation.Mat4()
	f.tracked = true
	f.mutex.Unlock()
	return true
}

// Tracked reports whether the last Follow found the device tracked
func (f *Follower) Tracked() bool {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.tracked
}

// SetPosition implements interface
func (f *Follower) SetPosition(position glm.Mat4) {
	f.mutex.Lock()
	f.position = position
	f.mutex.Unlock()
}

// Position implements interface
func (f *Follower) Position() glm.Mat4 {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.position
}

// SetRotation implements interface
func (f *Follower) SetRotation(rotation glm.Mat4) {
	f.mutex.Lock()
	f.rotation = rotation
	f.mutex.Unlock()
}

// Rotation implements interface
func (f *Follower) Rotation() glm.Mat4 {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.rotation
}

// Vertices implements interface
func (f *Follower) Vertices() []Vertex {
	return f.vertices
}
