package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

const (
	BackendHeadless = "headless"
	BackendVulkan   = "vulkan"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Framebuffer width, also the window width when a window is opened.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	// Window starting position, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	LogLevel  string `toml:"log_level"`
	// Path of the scene file, relative to the working directory.
	Scene string `toml:"scene"`
	// Directory watched for scene edits when HotReload is set.
	AssetsDir string `toml:"assets_dir"`
	HotReload bool   `toml:"hot_reload"`
	// headless or vulkan; vulkan keeps the headless recorder but syncs
	// and allocates through a Vulkan device.
	Backend string `toml:"backend"`
	// Stop after this many frames. 0 runs until quit.
	MaxFrames uint64 `toml:"max_frames"`
	// Open a glfw window for keyboard and mouse input.
	Window bool `toml:"window"`

	Renderer RendererConfig `toml:"renderer"`
	Camera   CameraConfig   `toml:"camera"`
}

type RendererConfig struct {
	FrameResourceCount int    `toml:"frame_resource_count"`
	MaxObjects         uint32 `toml:"max_objects"`
	MaxMaterials       uint32 `toml:"max_materials"`
	MaxTextures        uint32 `toml:"max_textures"`
	MaxGeometries      uint32 `toml:"max_geometries"`
	Workers            int    `toml:"workers"`
	// Simulated device latency per frame on the headless backend.
	LatencyMS int `toml:"latency_ms"`
	// Executed frames kept by the headless device, 0 keeps all.
	FrameHistory int `toml:"frame_history"`
}

type CameraConfig struct {
	Orbit bool `toml:"orbit"`
	// Units per second for W/S/A/D and R/F.
	MoveSpeed float32 `toml:"move_speed"`
	// Degrees per pixel of mouse drag.
	MouseSensitivity float32 `toml:"mouse_sensitivity"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:      "castle",
		Width:     1280,
		Height:    720,
		StartPosX: 100,
		StartPosY: 100,
		LogLevel:  "info",
		Scene:     "assets/scenes/castle.toml",
		AssetsDir: "assets/scenes",
		Backend:   BackendHeadless,
		Renderer: RendererConfig{
			FrameResourceCount: metadata.FrameResourceCount,
			MaxObjects:         256,
			MaxMaterials:       16,
			MaxTextures:        16,
			MaxGeometries:      8,
			FrameHistory:       8,
		},
		Camera: CameraConfig{
			MoveSpeed:        10.0,
			MouseSensitivity: 0.25,
		},
	}
}

// LoadConfig decodes an application config file over the defaults and
// validates the result.
func LoadConfig(path string) (*ApplicationConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := DefaultApplicationConfig()
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		err = fmt.Errorf("decoding config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := config.Validate(); err != nil {
		err = fmt.Errorf("config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("width and height must be > 0")
	}
	if c.Scene == "" {
		return fmt.Errorf("scene is required")
	}
	if c.HotReload && c.AssetsDir == "" {
		return fmt.Errorf("hot_reload needs assets_dir")
	}
	switch c.Backend {
	case BackendHeadless, BackendVulkan:
	default:
		return fmt.Errorf("unknown backend '%s', use %s or %s", c.Backend, BackendHeadless, BackendVulkan)
	}
	r := c.Renderer
	if r.FrameResourceCount < 1 {
		return fmt.Errorf("renderer.frame_resource_count must be >= 1")
	}
	if r.MaxObjects == 0 || r.MaxMaterials == 0 || r.MaxTextures == 0 || r.MaxGeometries == 0 {
		return fmt.Errorf("renderer capacities must be > 0")
	}
	if r.LatencyMS < 0 || r.FrameHistory < 0 || r.Workers < 0 {
		return fmt.Errorf("renderer settings must not be negative")
	}
	if c.Camera.MoveSpeed <= 0 || c.Camera.MouseSensitivity <= 0 {
		return fmt.Errorf("camera.move_speed and camera.mouse_sensitivity must be > 0")
	}
	return nil
}

// Latency returns the simulated device latency.
func (r RendererConfig) Latency() time.Duration {
	return time.Duration(r.LatencyMS) * time.Millisecond
}
