package metadata

import (
	"encoding/binary"

	"github.com/spaghettifunk/castle/engine/math"
)

// Handles index into the slice owned by the system that issued them.
type (
	RenderItemHandle int
	MaterialHandle   int
	TextureHandle    int
	MeshHandle       int
)

const InvalidHandle = -1

/**
 * @brief The standard vertex layout: position, normal and one set of
 * texture coordinates.
 */
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	TexC     math.Vec2
}

/** @brief A billboard point expanded into a quad by the geometry shader. */
type SpriteVertex struct {
	Position math.Vec3
	Size     math.Vec2
}

var (
	VertexStride       = uint32(binary.Size(Vertex{}))
	SpriteVertexStride = uint32(binary.Size(SpriteVertex{}))
)

/**
 * @brief A range of a shared index buffer drawn with one DrawIndexed call.
 */
type Submesh struct {
	IndexCount uint32
	StartIndex uint32
	BaseVertex int32
}

type VertexBufferView struct {
	Address       uint64
	SizeInBytes   uint32
	StrideInBytes uint32
}

// IndexBufferView always describes 16 bit indices.
type IndexBufferView struct {
	Address     uint64
	SizeInBytes uint32
}

/**
 * @brief A vertex and index buffer pair shared by several submeshes. Exactly
 * one of Vertices and SpriteVertices is populated.
 */
type MeshGeometry struct {
	Name           string
	Handle         MeshHandle
	Vertices       []Vertex
	SpriteVertices []SpriteVertex
	Indices        []uint16
	VertexStride   uint32
	/** @brief Submesh lookup by name, only used while the scene is built. */
	Submeshes map[string]Submesh

	VertexBuffer VertexBufferView
	IndexBuffer  IndexBufferView
}

// VertexCount returns the number of vertices regardless of layout.
func (m *MeshGeometry) VertexCount() int {
	if m.SpriteVertices != nil {
		return len(m.SpriteVertices)
	}
	return len(m.Vertices)
}

// VertexBytes packs the vertex data the way it is laid out on the GPU.
func (m *MeshGeometry) VertexBytes() []byte {
	if m.SpriteVertices != nil {
		b, _ := binary.Append(nil, binary.LittleEndian, m.SpriteVertices)
		return b
	}
	b, _ := binary.Append(nil, binary.LittleEndian, m.Vertices)
	return b
}

func (m *MeshGeometry) IndexBytes() []byte {
	b, _ := binary.Append(nil, binary.LittleEndian, m.Indices)
	return b
}

/**
 * @brief Describes one procedurally generated shape. Which fields are read
 * depends on Kind; see the geometry system generators.
 */
type ShapeConfig struct {
	/** @brief The submesh name render items refer to. */
	Name string `toml:"name"`
	/** @brief box, grid, sphere, cylinder, cone, prism, diamond, pyramid, torus or wedge. */
	Kind string `toml:"kind"`

	Width  float32 `toml:"width"`
	Height float32 `toml:"height"`
	Depth  float32 `toml:"depth"`
	/** @brief Sphere and cone radius, cylinder bottom radius, torus ring radius. */
	Radius float32 `toml:"radius"`
	/** @brief Cylinder top radius, torus tube radius. */
	MinorRadius float32 `toml:"minor_radius"`

	Slices       uint32 `toml:"slices"`
	Stacks       uint32 `toml:"stacks"`
	Subdivisions uint32 `toml:"subdivisions"`
	Rows         uint32 `toml:"rows"`
	Columns      uint32 `toml:"columns"`
	/** @brief Displace a grid with the hills height field. */
	Hills bool `toml:"hills"`
}
