package metadata

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/spaghettifunk/castle/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAligned(t *testing.T) {
	assert.Equal(t, uint64(0), GetAligned(0, 256))
	assert.Equal(t, uint64(256), GetAligned(1, 256))
	assert.Equal(t, uint64(256), GetAligned(192, 256))
	assert.Equal(t, uint64(256), GetAligned(256, 256))
	assert.Equal(t, uint64(1280), GetAligned(1248, 256))

	assert.True(t, IsAligned(512, 256))
	assert.False(t, IsAligned(96, 256))
}

func TestRecordSizes(t *testing.T) {
	assert.Equal(t, uint64(192), ObjectConstantsSize)
	assert.Equal(t, uint64(96), MaterialConstantsSize)
	assert.Equal(t, uint64(1248), PassConstantsSize)
	assert.Equal(t, uint32(32), VertexStride)
	assert.Equal(t, uint32(20), SpriteVertexStride)
}

func TestObjectConstantsLayout(t *testing.T) {
	world := math.NewMat4Translation(math.NewVec3(5, 6, 7))
	oc := ObjectConstants{World: world.Transposed()}
	b := oc.Bytes()
	require.Len(t, b, 192)

	at := func(i int) float32 {
		return gomath.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	// the translation ends up in the last column once transposed
	assert.Equal(t, float32(5), at(3))
	assert.Equal(t, float32(6), at(7))
	assert.Equal(t, float32(7), at(11))
	assert.Equal(t, float32(1), at(15))
}

func TestMaterialConstantsLayout(t *testing.T) {
	mc := MaterialConstants{
		DiffuseAlbedo: math.NewVec4(1, 1, 1, 0.5),
		FresnelR0:     math.NewVec3(0.1, 0.2, 0.3),
		Roughness:     0.25,
		MatTransform:  math.NewMat4Identity(),
	}
	b := mc.Bytes()
	require.Len(t, b, 96)
	assert.Equal(t, float32(0.5), gomath.Float32frombits(binary.LittleEndian.Uint32(b[12:])))
	assert.Equal(t, float32(0.25), gomath.Float32frombits(binary.LittleEndian.Uint32(b[28:])))
}

func TestRenderLayers(t *testing.T) {
	assert.Equal(t, [RenderLayerCount]RenderLayer{
		RenderLayerOpaque,
		RenderLayerAlphaTested,
		RenderLayerAlphaTestedBillboard,
		RenderLayerTransparent,
	}, DrawOrder)

	for l := RenderLayer(0); l < RenderLayerCount; l++ {
		parsed, err := ParseRenderLayer(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := ParseRenderLayer("translucent")
	assert.Error(t, err)
	assert.False(t, RenderLayerCount.Valid())
}

func TestMeshBytes(t *testing.T) {
	m := &MeshGeometry{
		Vertices: []Vertex{{}, {}},
		Indices:  []uint16{0, 1, 1},
	}
	assert.Len(t, m.VertexBytes(), 64)
	assert.Len(t, m.IndexBytes(), 6)
	assert.Equal(t, 2, m.VertexCount())

	sprites := &MeshGeometry{SpriteVertices: make([]SpriteVertex, 3)}
	assert.Len(t, sprites.VertexBytes(), 60)
}
