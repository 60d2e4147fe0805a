package systems

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/frame"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type RendererSystemConfig struct {
	FramebufferWidth  uint32
	FramebufferHeight uint32
	/** @brief The number of frames the CPU may record ahead of the device. */
	FrameResourceCount int
	MaxObjects         uint32
	MaxMaterials       uint32
	ClearColour        math.Vec4
}

/**
 * @brief The scene wide lighting written into the pass constants.
 */
type Lighting struct {
	AmbientLight math.Vec4
	/** @brief At most metadata.MaxLights; unused slots get metadata.DefaultLight(). */
	Lights   []metadata.Light
	FogColor math.Vec4
	FogStart float32
	FogRange float32
}

/**
 * @brief Owns the frame resource ring and runs the two per frame stages:
 * Update writes dirty constants into the current ring slot and Draw records
 * and submits the layered draws that read them.
 */
type RendererSystem struct {
	Config *RendererSystemConfig

	device  gpu.Device
	ring    *frame.Ring
	cmdList gpu.CommandList
	// slot selected by the last Update, nil before the first one
	current *frame.Resource

	renderItems *RenderItemSystem
	materials   *MaterialSystem
	textures    *TextureSystem
	geometry    *GeometrySystem
	pipelines   *PipelineSystem

	Lighting  Lighting
	Wireframe bool

	// The current window framebuffer width.
	FramebufferWidth uint32
	// The current window framebuffer height.
	FramebufferHeight uint32
	FrameNumber       uint64

	passConstants metadata.PassConstants
}

func NewRendererSystem(config *RendererSystemConfig, device gpu.Device, ris *RenderItemSystem, ms *MaterialSystem, ts *TextureSystem, gs *GeometrySystem, ps *PipelineSystem) (*RendererSystem, error) {
	if config.FramebufferWidth == 0 || config.FramebufferHeight == 0 {
		err := fmt.Errorf("func NewRendererSystem - config.FramebufferWidth and config.FramebufferHeight must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	ring, err := frame.NewRing(device, frame.RingConfig{
		Count:        config.FrameResourceCount,
		MaxObjects:   int(config.MaxObjects),
		MaxMaterials: int(config.MaxMaterials),
	})
	if err != nil {
		return nil, err
	}

	r := &RendererSystem{
		Config:            config,
		device:            device,
		ring:              ring,
		cmdList:           device.CommandList(),
		renderItems:       ris,
		materials:         ms,
		textures:          ts,
		geometry:          gs,
		pipelines:         ps,
		FramebufferWidth:  config.FramebufferWidth,
		FramebufferHeight: config.FramebufferHeight,
		Lighting: Lighting{
			AmbientLight: math.NewVec4(0.25, 0.25, 0.25, 1.0),
			FogColor:     math.NewVec4(0.7, 0.7, 0.7, 1.0),
			FogStart:     5.0,
			FogRange:     150.0,
		},
	}
	core.LogInfo("renderer system created (%dx%d, %d frame resources)", config.FramebufferWidth, config.FramebufferHeight, config.FrameResourceCount)
	return r, nil
}

// Shutdown waits for the device to finish every submitted frame and frees
// the frame resources.
func (r *RendererSystem) Shutdown() error {
	if r.ring == nil {
		return nil
	}
	err := r.ring.Close()
	r.ring = nil
	r.current = nil
	if err != nil {
		core.LogError(err.Error())
	}
	return err
}

// SetLighting replaces the scene lighting. More than metadata.MaxLights
// lights is an error.
func (r *RendererSystem) SetLighting(l Lighting) error {
	if len(l.Lights) > metadata.MaxLights {
		err := fmt.Errorf("%d lights, at most %d: %w", len(l.Lights), metadata.MaxLights, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return err
	}
	r.Lighting = l
	return nil
}

func (r *RendererSystem) OnResize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	r.FramebufferWidth = width
	r.FramebufferHeight = height
}

// AspectRatio returns the framebuffer width over its height.
func (r *RendererSystem) AspectRatio() float32 {
	return float32(r.FramebufferWidth) / float32(r.FramebufferHeight)
}

// PassConstants returns the pass record written by the last Update, with
// matrices stored transposed.
func (r *RendererSystem) PassConstants() metadata.PassConstants {
	return r.passConstants
}

// Ring exposes the frame resources, mostly for inspection.
func (r *RendererSystem) Ring() *frame.Ring {
	return r.ring
}

// CurrentFrame returns the slot selected by the last Update.
func (r *RendererSystem) CurrentFrame() *frame.Resource {
	return r.current
}
