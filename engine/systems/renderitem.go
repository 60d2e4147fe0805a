package systems

import (
	"fmt"
	"iter"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type RenderItemSystemConfig struct {
	/** @brief The number of slots in the object constant buffer. */
	MaxObjects uint32
	/** @brief How many frame resources a change has to reach. */
	FrameResourceCount int
}

/**
 * @brief The render item registry. Items live in one arena in registration
 * order; every layer keeps the handles of its items, also in registration
 * order. An item belongs to exactly one layer.
 */
type RenderItemSystem struct {
	Config *RenderItemSystemConfig

	materials *MaterialSystem
	geometry  *GeometrySystem

	items  []*metadata.RenderItem
	layers [metadata.RenderLayerCount][]metadata.RenderItemHandle
}

func NewRenderItemSystem(config *RenderItemSystemConfig, materials *MaterialSystem, geometry *GeometrySystem) (*RenderItemSystem, error) {
	if config.MaxObjects == 0 {
		err := fmt.Errorf("func NewRenderItemSystem - config.MaxObjects must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.FrameResourceCount <= 0 {
		err := fmt.Errorf("func NewRenderItemSystem - config.FrameResourceCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &RenderItemSystem{
		Config:    config,
		materials: materials,
		geometry:  geometry,
		items:     make([]*metadata.RenderItem, 0, config.MaxObjects),
	}, nil
}

func (ris *RenderItemSystem) Shutdown() error {
	ris.items = nil
	for i := range ris.layers {
		ris.layers[i] = nil
	}
	return nil
}

/**
 * @brief Adds an item to the registry and to layer. The item is assigned the
 * next object constant slot and is dirty for every frame resource. Its
 * material and mesh must already be registered.
 */
func (ris *RenderItemSystem) Register(item metadata.RenderItem, layer metadata.RenderLayer) (metadata.RenderItemHandle, error) {
	if !layer.Valid() {
		err := fmt.Errorf("render item '%s' in %s: %w", item.Name, layer, core.ErrInvalidLayer)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}
	if len(ris.items) >= int(ris.Config.MaxObjects) {
		err := fmt.Errorf("render item '%s': object buffer holds %d items: %w", item.Name, ris.Config.MaxObjects, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}
	if _, err := ris.materials.Get(item.Material); err != nil {
		err = fmt.Errorf("render item '%s': %w", item.Name, err)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}
	if _, err := ris.geometry.Get(item.Mesh); err != nil {
		err = fmt.Errorf("render item '%s': %w", item.Name, err)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}

	h := metadata.RenderItemHandle(len(ris.items))
	ri := item
	ri.ObjectIndex = int(h)
	ri.Layer = layer
	ri.NumFramesDirty = ris.Config.FrameResourceCount
	ris.items = append(ris.items, &ri)
	ris.layers[layer] = append(ris.layers[layer], h)
	return h, nil
}

// IterateLayer yields the items of layer in registration order. The
// sequence can be ranged over any number of times.
func (ris *RenderItemSystem) IterateLayer(layer metadata.RenderLayer) iter.Seq2[metadata.RenderItemHandle, *metadata.RenderItem] {
	return func(yield func(metadata.RenderItemHandle, *metadata.RenderItem) bool) {
		if !layer.Valid() {
			return
		}
		for _, h := range ris.layers[layer] {
			if !yield(h, ris.items[h]) {
				return
			}
		}
	}
}

// All yields every item in registration order.
func (ris *RenderItemSystem) All() iter.Seq2[metadata.RenderItemHandle, *metadata.RenderItem] {
	return func(yield func(metadata.RenderItemHandle, *metadata.RenderItem) bool) {
		for i, ri := range ris.items {
			if !yield(metadata.RenderItemHandle(i), ri) {
				return
			}
		}
	}
}

func (ris *RenderItemSystem) Get(h metadata.RenderItemHandle) (*metadata.RenderItem, error) {
	if h < 0 || int(h) >= len(ris.items) {
		return nil, fmt.Errorf("render item handle %d: %w", h, core.ErrInvalidHandle)
	}
	return ris.items[h], nil
}

// SetTransform replaces the world and texture transforms of an item and
// marks it dirty for every frame resource.
func (ris *RenderItemSystem) SetTransform(h metadata.RenderItemHandle, world, tex math.Mat4) error {
	ri, err := ris.Get(h)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	ri.World = world
	ri.TexTransform = tex
	ri.NumFramesDirty = ris.Config.FrameResourceCount
	return nil
}

func (ris *RenderItemSystem) Len() int {
	return len(ris.items)
}

// LayerLen returns the number of items drawn in layer.
func (ris *RenderItemSystem) LayerLen(layer metadata.RenderLayer) int {
	if !layer.Valid() {
		return 0
	}
	return len(ris.layers[layer])
}
