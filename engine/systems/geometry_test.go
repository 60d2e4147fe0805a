package systems

import (
	"testing"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/headless"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeometrySystem(t *testing.T) *GeometrySystem {
	t.Helper()
	device := headless.New()
	t.Cleanup(func() { device.Close() })
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 2}, newJobSystem(t), device)
	require.NoError(t, err)
	return gs
}

var sceneShapes = []metadata.ShapeConfig{
	{Name: "box", Kind: ShapeBox, Width: 1, Height: 1, Depth: 1, Subdivisions: 3},
	{Name: "grid", Kind: ShapeGrid, Width: 90, Depth: 150, Rows: 60, Columns: 40},
	{Name: "dunes", Kind: ShapeGrid, Width: 200, Depth: 200, Rows: 240, Columns: 40, Hills: true},
	{Name: "sphere", Kind: ShapeSphere, Radius: 0.5, Slices: 20, Stacks: 20},
	{Name: "cylinder", Kind: ShapeCylinder, Radius: 0.5, MinorRadius: 0.5, Height: 2, Slices: 20, Stacks: 20},
	{Name: "cone", Kind: ShapeCone, Radius: 0.5, Height: 1, Slices: 20, Stacks: 1},
	{Name: "prism", Kind: ShapePrism, Width: 1, Height: 1, Depth: 1},
	{Name: "pyramid", Kind: ShapePyramid, Width: 1, Height: 1, Depth: 1},
	{Name: "wedge", Kind: ShapeWedge, Width: 1, Height: 1, Depth: 2},
	{Name: "diamond", Kind: ShapeDiamond, Width: 1, Height: 1, Depth: 1, Slices: 6},
	{Name: "torus", Kind: ShapeTorus, Radius: 1, MinorRadius: 0.1, Slices: 20, Stacks: 20},
}

func TestShapeVertexCounts(t *testing.T) {
	expected := map[string]int{
		"box":      1152,
		"grid":     2400,
		"dunes":    9600,
		"sphere":   401,
		"cylinder": 485,
		"cone":     64,
		"prism":    18,
		"pyramid":  16,
		"wedge":    18,
		"diamond":  36,
		"torus":    441,
	}
	for _, shape := range sceneShapes {
		md, err := GenerateShape(shape)
		require.NoError(t, err, shape.Name)
		assert.Len(t, md.Vertices, expected[shape.Name], shape.Name)
		assert.Zero(t, len(md.Indices)%3, shape.Name)
	}

	_, err := GenerateShape(metadata.ShapeConfig{Name: "blob", Kind: "blob"})
	assert.ErrorIs(t, err, core.ErrContentNotFound)
}

// Every non degenerate triangle must be wound clockwise seen from the side
// its vertex normals point to.
func TestShapeWinding(t *testing.T) {
	for _, shape := range sceneShapes {
		md, err := GenerateShape(shape)
		require.NoError(t, err)

		bad := 0
		for i := 0; i+2 < len(md.Indices); i += 3 {
			for _, idx := range md.Indices[i : i+3] {
				require.Less(t, int(idx), len(md.Vertices), shape.Name)
			}
			a := md.Vertices[md.Indices[i]]
			b := md.Vertices[md.Indices[i+1]]
			c := md.Vertices[md.Indices[i+2]]

			face := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
			if face.LengthSquared() < 1e-12 {
				continue
			}
			normal := a.Normal.Add(b.Normal).Add(c.Normal)
			if face.Dot(normal) <= 0 {
				bad++
			}
		}
		assert.Zero(t, bad, "%s has %d inverted triangles", shape.Name, bad)
	}
}

func TestBoxNormalsAreUnitLength(t *testing.T) {
	md := GenerateBox(1, 2, 3, 2)
	for _, v := range md.Vertices {
		assert.InDelta(t, 1.0, v.Normal.Length(), 1e-5)
		assert.LessOrEqual(t, math.Abs(v.Position.X), float32(0.5)+1e-5)
		assert.LessOrEqual(t, math.Abs(v.Position.Y), float32(1.0)+1e-5)
		assert.LessOrEqual(t, math.Abs(v.Position.Z), float32(1.5)+1e-5)
	}
}

func TestBuildShapeGeometrySubmeshOffsets(t *testing.T) {
	gs := newGeometrySystem(t)

	shapes := []metadata.ShapeConfig{sceneShapes[0], sceneShapes[1], sceneShapes[3]}
	h, err := gs.BuildShapeGeometry("shapes", shapes)
	require.NoError(t, err)

	box := GenerateBox(1, 1, 1, 3)
	grid := GenerateGrid(90, 150, 60, 40)
	sphere := GenerateSphere(0.5, 20, 20)

	sm, err := gs.Submesh(h, "box")
	require.NoError(t, err)
	assert.Equal(t, metadata.Submesh{IndexCount: uint32(len(box.Indices))}, sm)

	sm, err = gs.Submesh(h, "grid")
	require.NoError(t, err)
	assert.Equal(t, metadata.Submesh{
		IndexCount: uint32(len(grid.Indices)),
		StartIndex: uint32(len(box.Indices)),
		BaseVertex: int32(len(box.Vertices)),
	}, sm)

	sm, err = gs.Submesh(h, "sphere")
	require.NoError(t, err)
	assert.Equal(t, metadata.Submesh{
		IndexCount: uint32(len(sphere.Indices)),
		StartIndex: uint32(len(box.Indices) + len(grid.Indices)),
		BaseVertex: int32(len(box.Vertices) + len(grid.Vertices)),
	}, sm)

	_, err = gs.Submesh(h, "torus")
	assert.ErrorIs(t, err, core.ErrContentNotFound)

	mesh, err := gs.Get(h)
	require.NoError(t, err)
	assert.Len(t, mesh.Vertices, len(box.Vertices)+len(grid.Vertices)+len(sphere.Vertices))
	assert.NotZero(t, mesh.VertexBuffer.Address)
	assert.NotZero(t, mesh.IndexBuffer.Address)
	assert.Equal(t, metadata.VertexStride, mesh.VertexBuffer.StrideInBytes)
	assert.Equal(t, uint32(2*len(mesh.Indices)), mesh.IndexBuffer.SizeInBytes)

	found, err := gs.Lookup("shapes")
	require.NoError(t, err)
	assert.Equal(t, h, found)
}

func TestBuildShapeGeometryErrors(t *testing.T) {
	gs := newGeometrySystem(t)

	_, err := gs.BuildShapeGeometry("huge", []metadata.ShapeConfig{
		{Name: "land", Kind: ShapeGrid, Width: 10, Depth: 10, Rows: 300, Columns: 300},
	})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)

	_, err = gs.BuildShapeGeometry("twins", []metadata.ShapeConfig{sceneShapes[0], sceneShapes[0]})
	assert.ErrorIs(t, err, core.ErrDuplicateContent)

	_, err = gs.BuildShapeGeometry("odd", []metadata.ShapeConfig{{Name: "blob", Kind: "blob"}})
	assert.ErrorIs(t, err, core.ErrContentNotFound)

	_, err = gs.BuildShapeGeometry("shapes", sceneShapes[:1])
	require.NoError(t, err)
	_, err = gs.BuildShapeGeometry("shapes", sceneShapes[:1])
	assert.ErrorIs(t, err, core.ErrDuplicateContent)
	assert.Equal(t, 1, gs.Len())
}

func TestBuildSpriteGeometry(t *testing.T) {
	gs := newGeometrySystem(t)

	sprites := []metadata.SpriteVertex{
		{Position: math.NewVec3(-10, 5, 0), Size: math.NewVec2(20, 20)},
		{Position: math.NewVec3(0, 5, 10), Size: math.NewVec2(20, 20)},
		{Position: math.NewVec3(10, 5, 0), Size: math.NewVec2(20, 20)},
	}
	h, err := gs.BuildSpriteGeometry("trees", "points", sprites)
	require.NoError(t, err)

	mesh, err := gs.Get(h)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 1, 2}, mesh.Indices)
	assert.Equal(t, 3, mesh.VertexCount())
	assert.Equal(t, metadata.SpriteVertexStride, mesh.VertexBuffer.StrideInBytes)

	sm, err := gs.Submesh(h, "points")
	require.NoError(t, err)
	assert.Equal(t, metadata.Submesh{IndexCount: 3}, sm)

	_, err = gs.BuildSpriteGeometry("empty", "points", nil)
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
}
