package systems

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// WireframeSuffix names the wireframe variant of a pipeline.
const WireframeSuffix = "_wireframe"

// PipelineCreator builds pipeline state objects.
type PipelineCreator interface {
	CreatePipeline(desc metadata.PipelineDesc) (gpu.Pipeline, error)
}

/**
 * @brief The pipeline provider. Pipelines are created up front, looked up by
 * name and bound to the render layer they draw.
 */
type PipelineSystem struct {
	pipelines map[string]gpu.Pipeline
	layers    [metadata.RenderLayerCount]gpu.Pipeline
	// layer -> wireframe variant, when one exists
	wireframe [metadata.RenderLayerCount]gpu.Pipeline
	creator   PipelineCreator
}

func NewPipelineSystem(creator PipelineCreator) (*PipelineSystem, error) {
	if creator == nil {
		err := fmt.Errorf("func NewPipelineSystem - a pipeline creator is required")
		core.LogError(err.Error())
		return nil, err
	}
	return &PipelineSystem{
		pipelines: make(map[string]gpu.Pipeline),
		creator:   creator,
	}, nil
}

func (ps *PipelineSystem) Shutdown() error {
	ps.pipelines = nil
	return nil
}

/**
 * @brief Creates a pipeline. A solid, opaque triangle list pipeline also gets
 * a "<name>_wireframe" variant.
 */
func (ps *PipelineSystem) Register(desc metadata.PipelineDesc) (gpu.Pipeline, error) {
	p, err := ps.create(desc)
	if err != nil {
		return nil, err
	}
	if !desc.Wireframe && !desc.AlphaTest && desc.Blend == metadata.BlendModeOpaque && desc.Topology == metadata.TopologyTriangleList {
		wire := desc
		wire.Name = desc.Name + WireframeSuffix
		wire.Wireframe = true
		if _, err := ps.create(wire); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (ps *PipelineSystem) create(desc metadata.PipelineDesc) (gpu.Pipeline, error) {
	if _, ok := ps.pipelines[desc.Name]; ok {
		err := fmt.Errorf("pipeline '%s': %w", desc.Name, core.ErrDuplicateContent)
		core.LogError(err.Error())
		return nil, err
	}
	p, err := ps.creator.CreatePipeline(desc)
	if err != nil {
		err = fmt.Errorf("creating pipeline '%s': %w", desc.Name, err)
		core.LogError(err.Error())
		return nil, err
	}
	ps.pipelines[desc.Name] = p
	core.LogDebug("pipeline '%s' created", desc.Name)
	return p, nil
}

func (ps *PipelineSystem) Get(name string) (gpu.Pipeline, error) {
	p, ok := ps.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("pipeline '%s': %w", name, core.ErrContentNotFound)
	}
	return p, nil
}

// BindLayer makes the named pipeline the one layer is drawn with.
func (ps *PipelineSystem) BindLayer(layer metadata.RenderLayer, name string) error {
	if !layer.Valid() {
		err := fmt.Errorf("binding pipeline '%s' to %s: %w", name, layer, core.ErrInvalidLayer)
		core.LogError(err.Error())
		return err
	}
	p, err := ps.Get(name)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	ps.layers[layer] = p
	ps.wireframe[layer] = nil
	if wire, ok := ps.pipelines[name+WireframeSuffix]; ok {
		ps.wireframe[layer] = wire
	}
	return nil
}

// ForLayer returns the pipeline bound to layer, or its wireframe variant
// when requested and available.
func (ps *PipelineSystem) ForLayer(layer metadata.RenderLayer, wireframe bool) gpu.Pipeline {
	if !layer.Valid() {
		return nil
	}
	if wireframe && ps.wireframe[layer] != nil {
		return ps.wireframe[layer]
	}
	return ps.layers[layer]
}

func (ps *PipelineSystem) Len() int {
	return len(ps.pipelines)
}
