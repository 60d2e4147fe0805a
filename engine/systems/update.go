package systems

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/components"
	"github.com/spaghettifunk/castle/engine/renderer/frame"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

/**
 * @brief Selects the next frame resource, waiting for the device if it still
 * reads it, and writes every dirty constant into it.
 * @param deltaTime Seconds since the last frame.
 * @param totalTime Seconds since the clock started.
 */
func (r *RendererSystem) Update(deltaTime, totalTime float64, camera *components.Camera) error {
	slot, err := r.ring.AdvanceFrame()
	if err != nil {
		return err
	}
	r.current = slot

	if err := r.UpdateObjectConstants(slot); err != nil {
		return err
	}
	if err := r.UpdateMaterialConstants(slot); err != nil {
		return err
	}
	return r.UpdatePassConstants(slot, deltaTime, totalTime, camera)
}

/**
 * @brief Writes the object record of every item whose counter is positive,
 * then decrements the counter. The matrices are stored transposed.
 */
func (r *RendererSystem) UpdateObjectConstants(slot *frame.Resource) error {
	written := 0
	for h, ri := range r.renderItems.All() {
		if ri.NumFramesDirty <= 0 {
			continue
		}
		oc := metadata.ObjectConstants{
			World:             ri.World.Transposed(),
			InvWorldTranspose: ri.World.InverseTranspose().Transposed(),
			TexTransform:      ri.TexTransform.Transposed(),
		}
		if err := slot.ObjectCB.CopyData(ri.ObjectIndex, oc.Bytes()); err != nil {
			err = fmt.Errorf("object constants of render item %d '%s': %w", h, ri.Name, err)
			core.LogError(err.Error())
			return err
		}
		ri.NumFramesDirty--
		written++
	}
	if written > 0 {
		core.LogDebug("frame slot %d: %d object records written", slot.Index, written)
	}
	return nil
}

// UpdateMaterialConstants does for materials what UpdateObjectConstants does
// for render items.
func (r *RendererSystem) UpdateMaterialConstants(slot *frame.Resource) error {
	for _, m := range r.materials.All() {
		if m.NumFramesDirty <= 0 {
			continue
		}
		mc := metadata.MaterialConstants{
			DiffuseAlbedo: m.DiffuseAlbedo,
			FresnelR0:     m.FresnelR0,
			Roughness:     m.Roughness,
			MatTransform:  m.Transform.Transposed(),
		}
		if err := slot.MaterialCB.CopyData(m.ConstantIndex, mc.Bytes()); err != nil {
			err = fmt.Errorf("material constants of '%s': %w", m.Name, err)
			core.LogError(err.Error())
			return err
		}
		m.NumFramesDirty--
	}
	return nil
}

/**
 * @brief Rebuilds the pass record from the camera, the clock and the scene
 * lighting. It is written once per frame, whether anything changed or not.
 */
func (r *RendererSystem) UpdatePassConstants(slot *frame.Resource, deltaTime, totalTime float64, camera *components.Camera) error {
	view := camera.GetView()
	proj := camera.GetProj()
	viewProj := view.Mul(proj)

	width := float32(r.FramebufferWidth)
	height := float32(r.FramebufferHeight)

	pc := metadata.PassConstants{
		View:                view.Transposed(),
		InvView:             view.Inverse().Transposed(),
		Proj:                proj.Transposed(),
		InvProj:             proj.Inverse().Transposed(),
		ViewProj:            viewProj.Transposed(),
		InvViewProj:         viewProj.Inverse().Transposed(),
		EyePosW:             camera.GetPosition(),
		RenderTargetSize:    math.NewVec2(width, height),
		InvRenderTargetSize: math.NewVec2(1.0/width, 1.0/height),
		NearZ:               camera.NearZ,
		FarZ:                camera.FarZ,
		TotalTime:           float32(totalTime),
		DeltaTime:           float32(deltaTime),
		AmbientLight:        r.Lighting.AmbientLight,
		FogColor:            r.Lighting.FogColor,
		FogStart:            r.Lighting.FogStart,
		FogRange:            r.Lighting.FogRange,
	}
	for i := range pc.Lights {
		pc.Lights[i] = metadata.DefaultLight()
	}
	copy(pc.Lights[:], r.Lighting.Lights)

	if err := slot.PassCB.CopyData(0, pc.Bytes()); err != nil {
		err = fmt.Errorf("pass constants: %w", err)
		core.LogError(err.Error())
		return err
	}
	r.passConstants = pc
	return nil
}
