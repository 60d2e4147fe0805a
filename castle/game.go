package castle

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type CastleGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	animations []animation
	reloads    uint32
}

// animation scrolls the UV transform of one material every frame.
type animation struct {
	material metadata.MaterialHandle
	du       float32
	dv       float32
}

func NewCastleGame(config *engine.ApplicationConfig) *CastleGame {
	g := &CastleGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	g.FnInitialize = g.Initialize
	g.FnUpdate = g.Update
	g.FnOnResize = g.OnResize
	g.FnShutdown = g.Shutdown

	return g
}

func (g *CastleGame) Initialize(e *engine.Engine) error {
	core.LogDebug("CastleGame Initialize fn....")

	state := g.State.(*gameState)
	for _, a := range e.Scene().Animations {
		h, err := e.Material(a.Material)
		if err != nil {
			err = fmt.Errorf("animation: %w", err)
			core.LogError(err.Error())
			return err
		}
		state.animations = append(state.animations, animation{material: h, du: a.DU, dv: a.DV})
	}

	e.Events().Register(core.EVENT_CODE_SCENE_RELOADED, g, g.onSceneReloaded)

	core.LogInfo("W/S/A/D move, R/F up and down, left drag looks around, O orbit, 1 wireframe, space prints the camera, ESC quits")
	return nil
}

func (g *CastleGame) Update(e *engine.Engine, deltaTime float64) error {
	state := g.State.(*gameState)

	dt := float32(deltaTime)
	for _, a := range state.animations {
		if err := e.ScrollMaterial(a.material, a.du*dt, a.dv*dt); err != nil {
			return err
		}
	}

	if e.Input().KeyPressed(core.KEY_SPACE) {
		pos := e.Camera().GetPosition()
		core.LogInfo("Pos:[%.2f, %.2f, %.2f] Orbit: %t", pos.X, pos.Y, pos.Z, e.Camera().Orbit)
	}
	return nil
}

func (g *CastleGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)

	state.width = width
	state.height = height
	return nil
}

func (g *CastleGame) Shutdown() error {
	state := g.State.(*gameState)
	core.LogDebug("CastleGame shutting down after %d scene reloads", state.reloads)
	return nil
}

func (g *CastleGame) onSceneReloaded(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	state := g.State.(*gameState)
	state.reloads++
	core.LogInfo("scene reloaded, %d material(s) updated", data.Data.U32[0])
	return false
}
