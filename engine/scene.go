package engine

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/assets/loaders"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/systems"
)

/**
 * @brief Creates everything a scene names, in dependency order: textures,
 * materials, geometry, pipelines and layer bindings, render items, then the
 * lighting and the camera. Any missing name fails the build.
 */
func (e *Engine) buildScene(scene *loaders.SceneConfig) error {
	sm := e.systemManager

	for _, t := range scene.Textures {
		if _, err := sm.TextureSystem.Register(t.Name, t.Path); err != nil {
			return fmt.Errorf("building scene '%s': %w", scene.Name, err)
		}
	}
	for _, m := range scene.MaterialConfigs() {
		if _, err := sm.MaterialSystem.Register(m); err != nil {
			return fmt.Errorf("building scene '%s': %w", scene.Name, err)
		}
	}

	for _, g := range scene.Geometry {
		if _, err := sm.GeometrySystem.BuildShapeGeometry(g.Name, g.Shapes); err != nil {
			return fmt.Errorf("building scene '%s': %w", scene.Name, err)
		}
	}
	for _, s := range scene.Sprites {
		if _, err := sm.GeometrySystem.BuildSpriteGeometry(s.Mesh, s.Submesh, s.Vertices()); err != nil {
			return fmt.Errorf("building scene '%s': %w", scene.Name, err)
		}
	}

	for _, p := range scene.Pipelines {
		desc, err := p.Desc()
		if err != nil {
			return fmt.Errorf("building scene '%s': %w", scene.Name, err)
		}
		if _, err := sm.PipelineSystem.Register(desc); err != nil {
			return fmt.Errorf("building scene '%s': %w", scene.Name, err)
		}
	}
	bindings, err := scene.LayerBindings()
	if err != nil {
		return fmt.Errorf("building scene '%s': %w", scene.Name, err)
	}
	for layer, name := range bindings {
		if err := sm.PipelineSystem.BindLayer(layer, name); err != nil {
			return fmt.Errorf("building scene '%s': %w", scene.Name, err)
		}
	}

	if err := e.registerItems(scene); err != nil {
		return fmt.Errorf("building scene '%s': %w", scene.Name, err)
	}

	if err := sm.RendererSystem.SetLighting(systems.Lighting{
		AmbientLight: scene.Lighting.AmbientVec(),
		Lights:       scene.Lights(),
		FogColor:     scene.Lighting.FogColourVec(),
		FogStart:     scene.Lighting.FogStart,
		FogRange:     scene.Lighting.FogRange,
	}); err != nil {
		return fmt.Errorf("building scene '%s': %w", scene.Name, err)
	}

	e.setupCamera(scene.Camera)

	core.LogInfo("scene '%s' built: %d textures, %d materials, %d meshes, %d pipelines, %d render items",
		scene.Name, sm.TextureSystem.Len(), sm.MaterialSystem.Len(), sm.GeometrySystem.Len(), sm.PipelineSystem.Len(), sm.RenderItemSystem.Len())
	return nil
}

func (e *Engine) registerItems(scene *loaders.SceneConfig) error {
	sm := e.systemManager

	items, err := scene.Expand()
	if err != nil {
		return err
	}
	for _, ri := range items {
		if _, ok := e.items[ri.Name]; ok {
			return fmt.Errorf("render item '%s': %w", ri.Name, core.ErrDuplicateContent)
		}
		mesh, err := sm.GeometrySystem.Lookup(ri.Mesh)
		if err != nil {
			return fmt.Errorf("render item '%s': %w", ri.Name, err)
		}
		submesh, err := sm.GeometrySystem.Submesh(mesh, ri.Submesh)
		if err != nil {
			return fmt.Errorf("render item '%s': %w", ri.Name, err)
		}
		material, err := sm.MaterialSystem.Lookup(ri.Material)
		if err != nil {
			return fmt.Errorf("render item '%s': %w", ri.Name, err)
		}
		pipeline := sm.PipelineSystem.ForLayer(ri.Layer, false)
		if pipeline == nil {
			return fmt.Errorf("render item '%s': no pipeline bound to layer %s: %w", ri.Name, ri.Layer, core.ErrContentNotFound)
		}
		if topology := pipeline.Desc().Topology; topology != ri.Topology {
			return fmt.Errorf("render item '%s' draws a %s but pipeline '%s' takes a %s: %w", ri.Name, ri.Topology, pipeline.Name(), topology, core.ErrInvalidLayer)
		}

		h, err := sm.RenderItemSystem.Register(metadata.RenderItem{
			Name:         ri.Name,
			World:        ri.World,
			TexTransform: ri.TexTransform,
			Material:     material,
			Mesh:         mesh,
			Submesh:      submesh,
			Topology:     ri.Topology,
		}, ri.Layer)
		if err != nil {
			return err
		}
		e.items[ri.Name] = h
	}
	return nil
}

func (e *Engine) setupCamera(config loaders.CameraConfig) {
	cam := e.Camera()
	position := config.PositionVec()
	if target, ok := config.Target(); ok {
		cam.LookAt(position, target, math.NewVec3Up())
	} else {
		cam.SetPosition(position)
	}
	cam.SetLens(math.DegToRad(config.FovDegrees), e.systemManager.RendererSystem.AspectRatio(), config.Near, config.Far)
}
