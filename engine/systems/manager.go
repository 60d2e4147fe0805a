package systems

import (
	"errors"
	"runtime"

	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
)

type SystemManagerConfig struct {
	FramebufferWidth   uint32
	FramebufferHeight  uint32
	FrameResourceCount int
	MaxObjects         uint32
	MaxMaterials       uint32
	MaxTextures        uint32
	MaxGeometries      uint32
	MaxCameras         uint16
	/** @brief Job system workers, defaults to the number of CPUs. */
	Workers     int
	ClearColour math.Vec4
}

type SystemManager struct {
	CameraSystem     *CameraSystem
	GeometrySystem   *GeometrySystem
	JobSystem        *JobSystem
	MaterialSystem   *MaterialSystem
	PipelineSystem   *PipelineSystem
	RenderItemSystem *RenderItemSystem
	RendererSystem   *RendererSystem
	TextureSystem    *TextureSystem
}

func NewSystemManager(config *SystemManagerConfig, device gpu.Device) (*SystemManager, error) {
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	js, err := NewJobSystem(workers, workers)
	if err != nil {
		return nil, err
	}

	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: max(config.MaxCameras, 1),
	})
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: config.MaxTextures,
	}, device.TextureTable())
	if err != nil {
		return nil, err
	}
	ms, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount:   config.MaxMaterials,
		FrameResourceCount: config.FrameResourceCount,
	}, ts)
	if err != nil {
		return nil, err
	}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{
		MaxGeometryCount: config.MaxGeometries,
	}, js, device)
	if err != nil {
		return nil, err
	}
	ps, err := NewPipelineSystem(device)
	if err != nil {
		return nil, err
	}
	ris, err := NewRenderItemSystem(&RenderItemSystemConfig{
		MaxObjects:         config.MaxObjects,
		FrameResourceCount: config.FrameResourceCount,
	}, ms, gs)
	if err != nil {
		return nil, err
	}
	rs, err := NewRendererSystem(&RendererSystemConfig{
		FramebufferWidth:   config.FramebufferWidth,
		FramebufferHeight:  config.FramebufferHeight,
		FrameResourceCount: config.FrameResourceCount,
		MaxObjects:         config.MaxObjects,
		MaxMaterials:       config.MaxMaterials,
		ClearColour:        config.ClearColour,
	}, device, ris, ms, ts, gs, ps)
	if err != nil {
		return nil, err
	}

	return &SystemManager{
		CameraSystem:     cs,
		GeometrySystem:   gs,
		JobSystem:        js,
		MaterialSystem:   ms,
		PipelineSystem:   ps,
		RenderItemSystem: ris,
		RendererSystem:   rs,
		TextureSystem:    ts,
	}, nil
}

// Shutdown stops the systems in the reverse order they were created in.
// Every system is stopped even when an earlier one fails, the errors are
// joined.
func (sm *SystemManager) Shutdown() error {
	return errors.Join(
		sm.RendererSystem.Shutdown(),
		sm.RenderItemSystem.Shutdown(),
		sm.PipelineSystem.Shutdown(),
		sm.GeometrySystem.Shutdown(),
		sm.MaterialSystem.Shutdown(),
		sm.TextureSystem.Shutdown(),
		sm.CameraSystem.Shutdown(),
		sm.JobSystem.Shutdown(),
	)
}
