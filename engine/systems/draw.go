package systems

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/frame"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

/**
 * @brief Records the frame selected by the last Update, submits it and
 * stamps the slot with the completion marker that guards its reuse.
 */
func (r *RendererSystem) Draw() error {
	slot := r.current
	if slot == nil {
		err := fmt.Errorf("draw called before update")
		core.LogError(err.Error())
		return err
	}

	// AdvanceFrame already waited for the lists recorded into this allocator
	if err := slot.Allocator.Reset(); err != nil {
		err = fmt.Errorf("resetting command allocator of slot %d: %w: %w", slot.Index, core.ErrResourceCreation, err)
		core.LogError(err.Error())
		return err
	}
	cl := r.cmdList
	if err := cl.Reset(slot.Allocator, nil); err != nil {
		err = fmt.Errorf("resetting command list: %w", err)
		core.LogError(err.Error())
		return err
	}

	cl.SetViewport(metadata.Viewport{
		Width:    float32(r.FramebufferWidth),
		Height:   float32(r.FramebufferHeight),
		MaxDepth: 1.0,
	})
	cl.ClearRenderTarget(r.Config.ClearColour)

	passAddr := slot.PassCB.Address()
	if !metadata.IsAligned(passAddr, r.device.ConstantBufferAlignment()) {
		_ = cl.Close()
		err := fmt.Errorf("pass constants at %#x: %w", passAddr, core.ErrMisalignedConstantBuffer)
		core.LogError(err.Error())
		return err
	}
	cl.SetPassConstants(passAddr)

	for _, layer := range metadata.DrawOrder {
		if err := r.DrawLayer(cl, slot, layer); err != nil {
			// the list is discarded, nothing of this frame reaches the device
			_ = cl.Close()
			return err
		}
	}

	if err := cl.Close(); err != nil {
		err = fmt.Errorf("closing command list: %w", err)
		core.LogError(err.Error())
		return err
	}
	if err := r.device.Execute(cl); err != nil {
		err = fmt.Errorf("executing frame %d: %w", r.FrameNumber, err)
		core.LogError(err.Error())
		return err
	}

	marker, err := r.device.Signal()
	if err != nil {
		err = fmt.Errorf("signalling frame %d: %w: %w", r.FrameNumber, core.ErrSyncFailure, err)
		core.LogError(err.Error())
		return err
	}
	r.ring.StampCompletion(slot, marker)
	r.FrameNumber++
	return nil
}

/**
 * @brief Records the draws of one layer: one pipeline bind, then for each
 * item its buffers, texture, constant addresses and one indexed draw. An
 * empty layer records nothing.
 */
func (r *RendererSystem) DrawLayer(cl gpu.CommandList, slot *frame.Resource, layer metadata.RenderLayer) error {
	if r.renderItems.LayerLen(layer) == 0 {
		return nil
	}
	pipeline := r.pipelines.ForLayer(layer, r.Wireframe)
	if pipeline == nil {
		err := fmt.Errorf("no pipeline bound to layer %s: %w", layer, core.ErrContentNotFound)
		core.LogError(err.Error())
		return err
	}
	cl.SetPipeline(pipeline)

	objectBase, objectStride := slot.ObjectCB.Address(), slot.ObjectCB.Stride()
	materialBase, materialStride := slot.MaterialCB.Address(), slot.MaterialCB.Stride()
	alignment := r.device.ConstantBufferAlignment()

	for h, ri := range r.renderItems.IterateLayer(layer) {
		mesh, err := r.geometry.Get(ri.Mesh)
		if err != nil {
			err = fmt.Errorf("render item %d '%s': %w", h, ri.Name, err)
			core.LogError(err.Error())
			return err
		}
		mat, err := r.materials.Get(ri.Material)
		if err != nil {
			err = fmt.Errorf("render item %d '%s': %w", h, ri.Name, err)
			core.LogError(err.Error())
			return err
		}

		objectAddr := objectBase + uint64(ri.ObjectIndex)*objectStride
		materialAddr := materialBase + uint64(mat.ConstantIndex)*materialStride
		for _, addr := range [...]uint64{objectAddr, materialAddr} {
			if !metadata.IsAligned(addr, alignment) {
				err := fmt.Errorf("render item %d '%s' binds constants at %#x: %w", h, ri.Name, addr, core.ErrMisalignedConstantBuffer)
				core.LogError(err.Error())
				return err
			}
		}

		cl.SetVertexBuffer(mesh.VertexBuffer)
		cl.SetIndexBuffer(mesh.IndexBuffer)
		cl.SetPrimitiveTopology(ri.Topology)
		cl.SetTextureTable(r.textures.Offset(mat.DiffuseTexture))
		cl.SetObjectConstants(objectAddr)
		cl.SetMaterialConstants(materialAddr)
		cl.DrawIndexed(ri.Submesh.IndexCount, 1, ri.Submesh.StartIndex, ri.Submesh.BaseVertex, 0)
	}
	return nil
}
