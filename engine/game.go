package engine

/**
 * @brief The game hooks the engine calls into. Every callback is optional.
 */
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

// Initialize runs once the scene is built, before the first frame.
type Initialize func(e *Engine) error

// Update runs every frame before the renderer writes the frame constants.
type Update func(e *Engine, deltaTime float64) error

// Render runs every frame after Update, before the draws are recorded.
type Render func(e *Engine, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
