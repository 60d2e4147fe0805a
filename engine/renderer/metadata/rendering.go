package metadata

import (
	"fmt"
	"strings"
)

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = iota
	/** @brief No faces are culled. */
	FaceCullModeNone
	/** @brief Only front faces are culled. */
	FaceCullModeFront
)

/** @brief How a pipeline combines its output with the render target. */
type BlendMode int

const (
	/** @brief The output replaces the target. */
	BlendModeOpaque BlendMode = iota
	/** @brief src*alpha + dst*(1-alpha). */
	BlendModeAlpha
)

type PrimitiveTopology int

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyPointList
	TopologyLineList
)

func (t PrimitiveTopology) String() string {
	switch t {
	case TopologyTriangleList:
		return "triangle_list"
	case TopologyPointList:
		return "point_list"
	case TopologyLineList:
		return "line_list"
	}
	return fmt.Sprintf("topology(%d)", int(t))
}

// RenderLayer groups render items that share one pipeline state.
type RenderLayer int

const (
	RenderLayerOpaque RenderLayer = iota
	RenderLayerTransparent
	RenderLayerAlphaTested
	RenderLayerAlphaTestedBillboard
	RenderLayerCount
)

// DrawOrder is the order layers are submitted in every frame. Transparent goes
// last so it blends over everything the depth buffer already holds.
var DrawOrder = [RenderLayerCount]RenderLayer{
	RenderLayerOpaque,
	RenderLayerAlphaTested,
	RenderLayerAlphaTestedBillboard,
	RenderLayerTransparent,
}

var layerNames = [RenderLayerCount]string{
	RenderLayerOpaque:               "opaque",
	RenderLayerTransparent:          "transparent",
	RenderLayerAlphaTested:          "alpha_tested",
	RenderLayerAlphaTestedBillboard: "alpha_tested_billboard",
}

func (l RenderLayer) String() string {
	if l < 0 || l >= RenderLayerCount {
		return fmt.Sprintf("layer(%d)", int(l))
	}
	return layerNames[l]
}

func (l RenderLayer) Valid() bool {
	return l >= 0 && l < RenderLayerCount
}

// ParseRenderLayer maps a layer name as written in scene files to its value.
func ParseRenderLayer(name string) (RenderLayer, error) {
	for i, n := range layerNames {
		if strings.EqualFold(n, name) {
			return RenderLayer(i), nil
		}
	}
	return RenderLayerCount, fmt.Errorf("unknown render layer %q", name)
}

/**
 * @brief Describes a pipeline state object: the shader set plus the fixed
 * function state a layer is drawn with.
 */
type PipelineDesc struct {
	Name           string
	VertexShader   string
	GeometryShader string
	PixelShader    string
	Topology       PrimitiveTopology
	Blend          BlendMode
	Cull           FaceCullMode
	/** @brief Discard pixels whose alpha falls below 0.1. */
	AlphaTest bool
	Wireframe bool
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}
