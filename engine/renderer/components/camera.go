package components

import (
	"github.com/spaghettifunk/castle/engine/math"
)

const (
	/** @brief The name of the default camera. */
	DEFAULT_CAMERA_NAME string = "default"

	MinOrbitRadius float32 = 5.0
	MaxOrbitRadius float32 = 150.0
	// phi stays inside (minOrbitPhi, pi - minOrbitPhi) so the view never flips
	minOrbitPhi float32 = 0.1
)

/**
 * @brief A first person camera with an optional orbit mode. The camera keeps
 * an orthonormal right/up/look frame in world space; the view matrix is rebuilt
 * lazily when the frame or the position changed.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	Right    math.Vec3
	Up       math.Vec3
	Look     math.Vec3

	NearZ  float32
	FarZ   float32
	Aspect float32
	FovY   float32

	/** @brief When set, the camera circles the origin at (Theta, Phi, Radius). */
	Orbit  bool
	Theta  float32
	Phi    float32
	Radius float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: IMPORTANT: Do not get this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix math.Mat4
	ProjMatrix math.Mat4
}

type CameraLookup struct {
	ID             uint16
	ReferenceCount uint16
	Camera         *Camera
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

// Reset puts the camera at the origin looking down +z with a 45 degree lens.
func (c *Camera) Reset() {
	c.Position = math.NewVec3Zero()
	c.Right = math.NewVec3Right()
	c.Up = math.NewVec3Up()
	c.Look = math.NewVec3Forward()
	c.Orbit = false
	c.Theta = 1.5 * math.K_PI
	c.Phi = 0.2 * math.K_PI
	c.Radius = 65.0
	c.SetLens(0.25*math.K_PI, 1.0, 1.0, 1000.0)
	c.ViewMatrix = math.NewMat4Identity()
	c.IsDirty = true
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

// SetLens rebuilds the projection matrix.
func (c *Camera) SetLens(fovY, aspect, nearZ, farZ float32) {
	c.FovY = fovY
	c.Aspect = aspect
	c.NearZ = nearZ
	c.FarZ = farZ
	c.ProjMatrix = math.NewMat4PerspectiveLH(fovY, aspect, nearZ, farZ)
}

// LookAt points the camera from position at target.
func (c *Camera) LookAt(position, target, worldUp math.Vec3) {
	c.Position = position
	c.Look = target.Sub(position).Normalized()
	c.Right = worldUp.Cross(c.Look).Normalized()
	c.Up = c.Look.Cross(c.Right)
	c.IsDirty = true
}

// Walk moves along the look direction.
func (c *Camera) Walk(d float32) {
	c.Position = c.Position.Add(c.Look.MulScalar(d))
	c.IsDirty = true
}

// Strafe moves along the right direction.
func (c *Camera) Strafe(d float32) {
	c.Position = c.Position.Add(c.Right.MulScalar(d))
	c.IsDirty = true
}

// Pedestal moves along the world up axis.
func (c *Camera) Pedestal(d float32) {
	c.Position.Y += d
	c.IsDirty = true
}

// Pitch rotates up and look around the right vector.
func (c *Camera) Pitch(angle float32) {
	r := math.NewMat4AxisAngle(c.Right, angle)
	c.Up = c.Up.TransformNormal(r)
	c.Look = c.Look.TransformNormal(r)
	c.IsDirty = true
}

// RotateY rotates the camera frame around the world y axis.
func (c *Camera) RotateY(angle float32) {
	r := math.NewMat4EulerY(angle)
	c.Right = c.Right.TransformNormal(r)
	c.Up = c.Up.TransformNormal(r)
	c.Look = c.Look.TransformNormal(r)
	c.IsDirty = true
}

/**
 * @brief Moves the orbit position. Phi is clamped so the camera never
 * reaches a pole.
 */
func (c *Camera) OrbitBy(dTheta, dPhi float32) {
	c.Theta += dTheta
	c.Phi = math.Clamp(c.Phi+dPhi, minOrbitPhi, math.K_PI-minOrbitPhi)
	c.IsDirty = true
}

// Zoom changes the orbit radius, clamped to [MinOrbitRadius, MaxOrbitRadius].
func (c *Camera) Zoom(dRadius float32) {
	c.Radius = math.Clamp(c.Radius+dRadius, MinOrbitRadius, MaxOrbitRadius)
	c.IsDirty = true
}

func (c *Camera) SetOrbit(enabled bool) {
	c.Orbit = enabled
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.UpdateViewMatrix()
	}
	return c.ViewMatrix
}

func (c *Camera) GetProj() math.Mat4 {
	return c.ProjMatrix
}

/**
 * @brief Re-orthonormalizes the camera frame, drift accumulates after many
 * rotations, and rebuilds the view matrix. In orbit mode the camera is first
 * placed on its sphere looking at the origin.
 */
func (c *Camera) UpdateViewMatrix() {
	if c.Orbit {
		c.LookAt(math.SphericalToCartesian(c.Radius, c.Theta, c.Phi), math.NewVec3Zero(), math.NewVec3Up())
	}

	c.Look = c.Look.Normalized()
	c.Up = c.Look.Cross(c.Right).Normalized()
	c.Right = c.Up.Cross(c.Look)

	c.ViewMatrix = math.NewMat4View(c.Position, c.Right, c.Up, c.Look)
	c.IsDirty = false
}
