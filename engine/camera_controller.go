package engine

import (
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/components"
)

// world units of orbit radius per pixel of right drag
const zoomPerPixel float32 = 0.05

/**
 * @brief Turns keyboard and mouse state into camera motion once per frame.
 * W/S walk, A/D strafe, R/F move up and down. Dragging with the left button
 * turns the camera, or moves it around the origin in orbit mode where
 * dragging with the right button changes the orbit radius.
 */
type cameraController struct {
	camera *components.Camera
	input  *core.Input

	moveSpeed   float32
	sensitivity float32
}

func newCameraController(camera *components.Camera, input *core.Input, config CameraConfig) *cameraController {
	camera.SetOrbit(config.Orbit)
	return &cameraController{
		camera:      camera,
		input:       input,
		moveSpeed:   config.MoveSpeed,
		sensitivity: config.MouseSensitivity,
	}
}

func (cc *cameraController) ToggleOrbit() {
	cc.camera.SetOrbit(!cc.camera.Orbit)
	core.LogDebug("orbit camera: %t", cc.camera.Orbit)
}

func (cc *cameraController) Update(deltaTime float64) {
	d := cc.moveSpeed * float32(deltaTime)
	if cc.input.IsKeyDown(core.KEY_W) {
		cc.camera.Walk(d)
	}
	if cc.input.IsKeyDown(core.KEY_S) {
		cc.camera.Walk(-d)
	}
	if cc.input.IsKeyDown(core.KEY_A) {
		cc.camera.Strafe(-d)
	}
	if cc.input.IsKeyDown(core.KEY_D) {
		cc.camera.Strafe(d)
	}
	if cc.input.IsKeyDown(core.KEY_R) {
		cc.camera.Pedestal(d)
	}
	if cc.input.IsKeyDown(core.KEY_F) {
		cc.camera.Pedestal(-d)
	}

	mx, my := cc.input.MouseDelta()
	if mx == 0 && my == 0 {
		return
	}
	if cc.input.IsButtonDown(core.BUTTON_LEFT) {
		dx := math.DegToRad(cc.sensitivity * float32(mx))
		dy := math.DegToRad(cc.sensitivity * float32(my))
		if cc.camera.Orbit {
			cc.camera.OrbitBy(dx, dy)
		} else {
			cc.camera.Pitch(dy)
			cc.camera.RotateY(dx)
		}
	} else if cc.input.IsButtonDown(core.BUTTON_RIGHT) && cc.camera.Orbit {
		cc.camera.Zoom(zoomPerPixel * float32(mx-my))
	}
}
