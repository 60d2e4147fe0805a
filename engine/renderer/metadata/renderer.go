package metadata

import (
	"encoding/binary"

	"github.com/spaghettifunk/castle/engine/math"
)

const (
	// FrameResourceCount is the number of frames the CPU may run ahead of the GPU.
	FrameResourceCount = 3
	// ConstantBufferAlignment is the minimum alignment of a constant buffer view.
	ConstantBufferAlignment = 256
	MaxLights               = 16
)

/**
 * @brief Everything needed to draw one piece of a mesh with one material.
 */
type RenderItem struct {
	Name string
	/** @brief Local to world transform. */
	World        math.Mat4
	TexTransform math.Mat4

	/**
	 * @brief Number of frame resources that still hold stale constants. Set to
	 * FrameResourceCount on every change so each ring slot gets the update.
	 */
	NumFramesDirty int
	/** @brief Slot in the object constant buffer. */
	ObjectIndex int

	Material MaterialHandle
	Mesh     MeshHandle
	Submesh  Submesh
	Topology PrimitiveTopology
	Layer    RenderLayer
}

// ObjectConstants is the per item record read by the vertex shader. All
// matrices are stored transposed.
type ObjectConstants struct {
	World             math.Mat4
	InvWorldTranspose math.Mat4
	TexTransform      math.Mat4
}

func (c ObjectConstants) Bytes() []byte {
	b, _ := binary.Append(nil, binary.LittleEndian, c)
	return b
}

/**
 * @brief One light record. Directional lights use Direction, point lights use
 * Position and the falloff range, spot lights use all of them plus SpotPower.
 */
type Light struct {
	Strength     math.Vec3
	FalloffStart float32
	Direction    math.Vec3
	FalloffEnd   float32
	Position     math.Vec3
	SpotPower    float32
}

// DefaultLight has the falloff range and spot power shaders expect from an
// unused slot.
func DefaultLight() Light {
	return Light{
		Strength:     math.NewVec3(0.5, 0.5, 0.5),
		FalloffStart: 1.0,
		Direction:    math.NewVec3(0, -1, 0),
		FalloffEnd:   10.0,
		SpotPower:    64.0,
	}
}

// PassConstants holds the per frame data shared by every draw.
type PassConstants struct {
	View        math.Mat4
	InvView     math.Mat4
	Proj        math.Mat4
	InvProj     math.Mat4
	ViewProj    math.Mat4
	InvViewProj math.Mat4

	EyePosW             math.Vec3
	Pad0                float32
	RenderTargetSize    math.Vec2
	InvRenderTargetSize math.Vec2
	NearZ               float32
	FarZ                float32
	TotalTime           float32
	DeltaTime           float32

	AmbientLight math.Vec4
	FogColor     math.Vec4
	FogStart     float32
	FogRange     float32
	Pad1         math.Vec2

	Lights [MaxLights]Light
}

func (c PassConstants) Bytes() []byte {
	b, _ := binary.Append(nil, binary.LittleEndian, c)
	return b
}

var (
	ObjectConstantsSize   = uint64(binary.Size(ObjectConstants{}))
	MaterialConstantsSize = uint64(binary.Size(MaterialConstants{}))
	PassConstantsSize     = uint64(binary.Size(PassConstants{}))
)
