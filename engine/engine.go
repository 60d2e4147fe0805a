package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/castle/engine/assets"
	"github.com/spaghettifunk/castle/engine/assets/loaders"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/components"
	"github.com/spaghettifunk/castle/engine/renderer/headless"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Platform is the window the engine pumps once per frame. PumpMessages
// returns false when the window was closed.
type Platform interface {
	PumpMessages() bool
	Shutdown() error
}

type Option func(*Engine)

// WithBackend runs the headless recorder on top of a real device.
func WithBackend(b headless.Backend) Option {
	return func(e *Engine) { e.backend = b }
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig
	session      uuid.UUID

	isRunning   atomic.Bool
	isSuspended bool

	platform      Platform
	backend       headless.Backend
	device        *headless.Device
	events        *core.EventBus
	input         *core.Input
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager

	scene      *loaders.SceneConfig
	items      map[string]metadata.RenderItemHandle
	controller *cameraController

	width      uint32
	height     uint32
	clock      *core.Clock
	metrics    *core.Metrics
	totalTime  float64
	frameCount uint64
}

func New(g *Game, opts ...Option) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		err := fmt.Errorf("func New - game and game.ApplicationConfig are required")
		core.LogError(err.Error())
		return nil, err
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		config:       g.ApplicationConfig,
		session:      uuid.New(),
		items:        make(map[string]metadata.RenderItemHandle),
		width:        g.ApplicationConfig.Width,
		height:       g.ApplicationConfig.Height,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := core.SetLogLevel(e.config.LogLevel); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogSession(e.session.String())

	e.events = core.NewEventBus()
	e.input = core.NewInput(e.events)
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine cannot be initialized in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	opts := []headless.Option{
		headless.WithLatency(e.config.Renderer.Latency()),
		headless.WithFrameHistory(e.config.Renderer.FrameHistory),
	}
	if e.backend != nil {
		opts = append(opts, headless.WithBackend(e.backend))
	}
	e.device = headless.New(opts...)

	am, err := assets.NewAssetManager(e.events)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	e.assetManager = am

	scene, err := e.assetManager.LoadScene(e.config.Scene)
	if err != nil {
		return err
	}
	e.scene = scene
	if e.config.HotReload {
		if err := e.assetManager.Initialize(e.config.AssetsDir); err != nil {
			core.LogError(err.Error())
			return err
		}
	}

	r := e.config.Renderer
	sm, err := systems.NewSystemManager(&systems.SystemManagerConfig{
		FramebufferWidth:   e.width,
		FramebufferHeight:  e.height,
		FrameResourceCount: r.FrameResourceCount,
		MaxObjects:         r.MaxObjects,
		MaxMaterials:       r.MaxMaterials,
		MaxTextures:        r.MaxTextures,
		MaxGeometries:      r.MaxGeometries,
		MaxCameras:         1,
		Workers:            r.Workers,
		ClearColour:        scene.ClearColourVec(),
	}, e.device)
	if err != nil {
		return err
	}
	e.systemManager = sm

	if err := e.buildScene(scene); err != nil {
		return err
	}
	e.controller = newCameraController(e.Camera(), e.input, e.config.Camera)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.isRunning.Store(true)
	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized: %d render items, %d materials", e.systemManager.RenderItemSystem.Len(), e.systemManager.MaterialSystem.Len())
	return nil
}

/**
 * @brief Drives the frame loop until the context is cancelled, a quit event
 * arrives, the window closes or MaxFrames frames were drawn. A frame that
 * fails stops the loop and its error is returned.
 */
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()
	for e.isRunning.Load() {
		select {
		case <-ctx.Done():
			core.LogInfo("context cancelled, leaving the frame loop")
			e.isRunning.Store(false)
			continue
		default:
		}

		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			continue
		}

		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Tick()
		delta := e.clock.Delta()

		if err := e.Frame(delta); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.frameCount, err)
			e.isRunning.Store(false)
			return err
		}

		if e.metrics.Update(delta) {
			core.LogInfo("fps: %.1f mspf: %.3f frames: %d", e.metrics.FPS(), e.metrics.MSPerFrame(), e.metrics.TotalFrames())
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		e.input.Update()

		if e.config.MaxFrames > 0 && e.frameCount >= e.config.MaxFrames {
			core.LogInfo("drew %d frames, stopping", e.frameCount)
			e.isRunning.Store(false)
		}
	}
	return nil
}

// Frame runs one update and one draw.
func (e *Engine) Frame(deltaTime float64) error {
	if err := e.Update(deltaTime); err != nil {
		return err
	}
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(e, deltaTime); err != nil {
			return err
		}
	}
	if err := e.Draw(); err != nil {
		return err
	}
	e.frameCount++
	return nil
}

/**
 * @brief Applies pending scene edits and camera input, runs the game update
 * and writes the dirty constants of the next frame resource. Blocks while
 * that frame resource is still in use by the device.
 */
func (e *Engine) Update(deltaTime float64) error {
	e.applyMaterialUpdates()
	e.controller.Update(deltaTime)

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(e, deltaTime); err != nil {
			return err
		}
	}

	e.totalTime += deltaTime
	return e.systemManager.RendererSystem.Update(deltaTime, e.totalTime, e.Camera())
}

// Draw records and submits the draws of the frame written by Update.
func (e *Engine) Draw() error {
	return e.systemManager.RendererSystem.Draw()
}

// applyMaterialUpdates drains the hot reload queue without blocking.
func (e *Engine) applyMaterialUpdates() {
	for {
		select {
		case u, ok := <-e.assetManager.Updates():
			if !ok {
				return
			}
			h, err := e.systemManager.MaterialSystem.Lookup(u.Name)
			if err != nil {
				core.LogWarn("reloaded material '%s' is not in use: %s", u.Name, err)
				continue
			}
			if err := e.SetMaterialParam(h, u.Params); err != nil {
				core.LogWarn("applying reloaded material '%s': %s", u.Name, err)
				continue
			}
			core.LogDebug("material '%s' updated from disk", u.Name)
		default:
			return
		}
	}
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown || e.currentStage == EngineStageUninitialized {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.assetManager != nil {
		errs = append(errs, e.assetManager.Shutdown())
	}
	// waits for every frame still in flight
	if e.systemManager != nil {
		errs = append(errs, e.systemManager.Shutdown())
	}
	if e.device != nil {
		errs = append(errs, e.device.Close())
	} else if e.backend != nil {
		errs = append(errs, e.backend.Close())
	}
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	e.events.Shutdown()

	if err := errors.Join(errs...); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("engine shut down after %d frames", e.frameCount)
	e.currentStage = EngineStageUninitialized
	return nil
}

// AttachPlatform makes the engine pump the given window every frame and
// shut it down with the engine. The window usually feeds Input() and
// Events(), so it is attached after New.
func (e *Engine) AttachPlatform(p Platform) {
	e.platform = p
}

// Quit asks the frame loop to stop after the current frame.
func (e *Engine) Quit() {
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

// SetTransform replaces the world and texture transforms of a render item.
func (e *Engine) SetTransform(h metadata.RenderItemHandle, world, tex math.Mat4) error {
	return e.systemManager.RenderItemSystem.SetTransform(h, world, tex)
}

// SetMaterialParam changes the parameters of a material. Fields left nil
// keep their value.
func (e *Engine) SetMaterialParam(h metadata.MaterialHandle, params metadata.MaterialParams) error {
	return e.systemManager.MaterialSystem.SetParams(h, params)
}

// ScrollMaterial moves the UV transform of a material by (du, dv).
func (e *Engine) ScrollMaterial(h metadata.MaterialHandle, du, dv float32) error {
	return e.systemManager.MaterialSystem.ScrollUV(h, du, dv)
}

// Material looks a material up by name.
func (e *Engine) Material(name string) (metadata.MaterialHandle, error) {
	return e.systemManager.MaterialSystem.Lookup(name)
}

// RenderItem looks a render item up by the name it got in the scene.
func (e *Engine) RenderItem(name string) (metadata.RenderItemHandle, error) {
	h, ok := e.items[name]
	if !ok {
		return metadata.InvalidHandle, fmt.Errorf("render item '%s': %w", name, core.ErrContentNotFound)
	}
	return h, nil
}

// SetWireframe switches the opaque layer to its wireframe pipeline.
func (e *Engine) SetWireframe(enabled bool) {
	e.systemManager.RendererSystem.Wireframe = enabled
	core.LogDebug("wireframe: %t", enabled)
}

func (e *Engine) Camera() *components.Camera {
	return e.systemManager.CameraSystem.GetDefault()
}

func (e *Engine) Input() *core.Input {
	return e.input
}

func (e *Engine) Events() *core.EventBus {
	return e.events
}

func (e *Engine) Scene() *loaders.SceneConfig {
	return e.scene
}

func (e *Engine) Systems() *systems.SystemManager {
	return e.systemManager
}

// Device returns the command recorder, for inspection of executed frames.
func (e *Engine) Device() *headless.Device {
	return e.device
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, context core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, context core.EventContext) bool {
	if e.currentStage < EngineStageInitialized {
		return false
	}
	keyCode := core.KeyCode(context.Data.U16[0])
	switch keyCode {
	case core.KEY_ESCAPE:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	case core.KEY_1:
		e.SetWireframe(!e.systemManager.RendererSystem.Wireframe)
	case core.KEY_O:
		e.controller.ToggleOrbit()
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, context core.EventContext) bool {
	width := context.Data.U32[0]
	height := context.Data.U32[1]

	if e.currentStage < EngineStageInitialized {
		return false
	}
	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		e.clock.Stop()
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
		e.clock.Resume()
	}
	e.systemManager.RendererSystem.OnResize(width, height)
	cam := e.Camera()
	cam.SetLens(cam.FovY, e.systemManager.RendererSystem.AspectRatio(), cam.NearZ, cam.FarZ)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}
