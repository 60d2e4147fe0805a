package systems

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/components"
	"github.com/spaghettifunk/castle/engine/renderer/headless"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTable = metadata.TextureTable{Base: 0x10000, DescriptorSize: 32}

func newJobSystem(t *testing.T) *JobSystem {
	t.Helper()
	js, err := NewJobSystem(2, 2)
	require.NoError(t, err)
	t.Cleanup(func() { js.Shutdown() })
	return js
}

func newMaterialSystem(t *testing.T, textures ...string) (*MaterialSystem, *TextureSystem) {
	t.Helper()
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 8}, testTable)
	require.NoError(t, err)
	for _, name := range textures {
		_, err := ts.Register(name, "textures/"+name+".dds")
		require.NoError(t, err)
	}
	ms, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount:   4,
		FrameResourceCount: metadata.FrameResourceCount,
	}, ts)
	require.NoError(t, err)
	return ms, ts
}

func opaquePipeline() metadata.PipelineDesc {
	return metadata.PipelineDesc{
		Name:         "opaque",
		VertexShader: "standardVS",
		PixelShader:  "opaquePS",
		Topology:     metadata.TopologyTriangleList,
	}
}

func transparentPipeline() metadata.PipelineDesc {
	desc := opaquePipeline()
	desc.Name = "transparent"
	desc.Blend = metadata.BlendModeAlpha
	return desc
}

func TestJobSystemConfig(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRun(t *testing.T) {
	js := newJobSystem(t)

	var ran atomic.Int32
	tasks := make([]func() error, 10)
	for i := range tasks {
		tasks[i] = func() error {
			ran.Add(1)
			return nil
		}
	}
	require.NoError(t, js.Run(tasks...))
	assert.Equal(t, int32(10), ran.Load())

	boom := errors.New("boom")
	err := js.Run(
		func() error { return nil },
		func() error { return boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestTextureSystem(t *testing.T) {
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 2}, testTable)
	require.NoError(t, err)

	grass, err := ts.Register("grass", "textures/grass.dds")
	require.NoError(t, err)
	water, err := ts.Register("water", "textures/water1.dds")
	require.NoError(t, err)
	assert.Equal(t, metadata.TextureHandle(0), grass)
	assert.Equal(t, metadata.TextureHandle(1), water)

	_, err = ts.Register("grass", "textures/grass.dds")
	assert.ErrorIs(t, err, core.ErrDuplicateContent)
	_, err = ts.Register("stone", "textures/stone.dds")
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)

	h, err := ts.Lookup("water")
	require.NoError(t, err)
	assert.Equal(t, water, h)
	_, err = ts.Lookup("bricks")
	assert.ErrorIs(t, err, core.ErrContentNotFound)

	tex, err := ts.Get(water)
	require.NoError(t, err)
	assert.Equal(t, "textures/water1.dds", tex.Path)
	_, err = ts.Get(5)
	assert.ErrorIs(t, err, core.ErrInvalidHandle)

	assert.Equal(t, testTable.Base, ts.Offset(grass))
	assert.Equal(t, testTable.Base+testTable.DescriptorSize, ts.Offset(water))
	assert.Equal(t, 2, ts.Len())
}

func TestMaterialRegister(t *testing.T) {
	ms, _ := newMaterialSystem(t, "grass", "water")

	h, err := ms.Register(metadata.MaterialConfig{
		Name:           "grass",
		ConstantIndex:  0,
		DiffuseTexture: "grass",
		DiffuseAlbedo:  math.NewVec4(1, 1, 1, 1),
		FresnelR0:      math.NewVec3(0.01, 0.01, 0.01),
		Roughness:      0.125,
	})
	require.NoError(t, err)

	m, err := ms.Get(h)
	require.NoError(t, err)
	assert.Equal(t, metadata.FrameResourceCount, m.NumFramesDirty)
	assert.Equal(t, math.NewMat4Identity(), m.Transform)
	assert.Equal(t, metadata.TextureHandle(0), m.DiffuseTexture)

	_, err = ms.Register(metadata.MaterialConfig{Name: "grass", ConstantIndex: 1, DiffuseTexture: "grass"})
	assert.ErrorIs(t, err, core.ErrDuplicateContent)
	_, err = ms.Register(metadata.MaterialConfig{Name: "stone", ConstantIndex: 4, DiffuseTexture: "grass"})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
	_, err = ms.Register(metadata.MaterialConfig{Name: "stone", ConstantIndex: -1, DiffuseTexture: "grass"})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
	_, err = ms.Register(metadata.MaterialConfig{Name: "bricks", ConstantIndex: 2, DiffuseTexture: "bricks"})
	assert.ErrorIs(t, err, core.ErrContentNotFound)
	assert.Equal(t, 1, ms.Len())
}

func TestMaterialSlotCollisionRejected(t *testing.T) {
	ms, _ := newMaterialSystem(t, "grass", "water")

	_, err := ms.Register(metadata.MaterialConfig{Name: "grass", ConstantIndex: 0, DiffuseTexture: "grass"})
	require.NoError(t, err)
	_, err = ms.Register(metadata.MaterialConfig{Name: "water", ConstantIndex: 0, DiffuseTexture: "water"})
	require.ErrorIs(t, err, core.ErrMaterialSlotCollision)

	_, err = ms.Lookup("water")
	assert.ErrorIs(t, err, core.ErrContentNotFound)

	// the slot is still free for another index
	_, err = ms.Register(metadata.MaterialConfig{Name: "water", ConstantIndex: 1, DiffuseTexture: "water"})
	assert.NoError(t, err)
}

func TestMaterialSetParams(t *testing.T) {
	ms, _ := newMaterialSystem(t, "water")
	h, err := ms.Register(metadata.MaterialConfig{Name: "water", ConstantIndex: 0, DiffuseTexture: "water", Roughness: 0})
	require.NoError(t, err)
	m, _ := ms.Get(h)
	m.NumFramesDirty = 0

	require.NoError(t, ms.SetParams(h, metadata.MaterialParams{}))
	assert.Equal(t, 0, m.NumFramesDirty)

	roughness := float32(0.5)
	albedo := math.NewVec4(1, 1, 1, 0.5)
	require.NoError(t, ms.SetParams(h, metadata.MaterialParams{Roughness: &roughness, DiffuseAlbedo: &albedo}))
	assert.Equal(t, metadata.FrameResourceCount, m.NumFramesDirty)
	assert.Equal(t, float32(0.5), m.Roughness)
	assert.Equal(t, albedo, m.DiffuseAlbedo)

	assert.ErrorIs(t, ms.SetParams(7, metadata.MaterialParams{Roughness: &roughness}), core.ErrInvalidHandle)
}

func TestMaterialScrollUV(t *testing.T) {
	ms, _ := newMaterialSystem(t, "water")
	h, err := ms.Register(metadata.MaterialConfig{Name: "water", ConstantIndex: 0, DiffuseTexture: "water"})
	require.NoError(t, err)
	m, _ := ms.Get(h)
	m.NumFramesDirty = 0

	require.NoError(t, ms.ScrollUV(h, 0, -0.2))
	assert.InDelta(t, 0.8, m.Transform.Data[13], 1e-6)
	assert.Equal(t, float32(0), m.Transform.Data[12])
	assert.Equal(t, metadata.FrameResourceCount, m.NumFramesDirty)

	require.NoError(t, ms.ScrollUV(h, 0, -0.9))
	assert.InDelta(t, 0.9, m.Transform.Data[13], 1e-5)

	require.NoError(t, ms.ScrollUV(h, 0, 1.1))
	assert.InDelta(t, 1.0, m.Transform.Data[13], 1e-5)

	require.NoError(t, ms.ScrollUV(h, 0.3, 0))
	assert.InDelta(t, 0.3, m.Transform.Data[12], 1e-6)
}

func TestPipelineSystem(t *testing.T) {
	device := headless.New()
	t.Cleanup(func() { device.Close() })

	ps, err := NewPipelineSystem(device)
	require.NoError(t, err)

	_, err = ps.Register(opaquePipeline())
	require.NoError(t, err)
	_, err = ps.Register(transparentPipeline())
	require.NoError(t, err)
	_, err = ps.Register(metadata.PipelineDesc{
		Name:           "tree_sprites",
		VertexShader:   "treeSpriteVS",
		GeometryShader: "treeSpriteGS",
		PixelShader:    "treeSpritePS",
		Topology:       metadata.TopologyPointList,
		AlphaTest:      true,
		Cull:           metadata.FaceCullModeNone,
	})
	require.NoError(t, err)
	// only the opaque pipeline has a wireframe variant
	assert.Equal(t, 4, ps.Len())

	_, err = ps.Register(opaquePipeline())
	assert.ErrorIs(t, err, core.ErrDuplicateContent)

	require.NoError(t, ps.BindLayer(metadata.RenderLayerOpaque, "opaque"))
	require.NoError(t, ps.BindLayer(metadata.RenderLayerTransparent, "transparent"))
	assert.ErrorIs(t, ps.BindLayer(metadata.RenderLayerCount, "opaque"), core.ErrInvalidLayer)
	assert.ErrorIs(t, ps.BindLayer(metadata.RenderLayerAlphaTested, "alphaTested"), core.ErrContentNotFound)

	assert.Equal(t, "opaque", ps.ForLayer(metadata.RenderLayerOpaque, false).Name())
	assert.Equal(t, "opaque"+WireframeSuffix, ps.ForLayer(metadata.RenderLayerOpaque, true).Name())
	assert.Equal(t, "transparent", ps.ForLayer(metadata.RenderLayerTransparent, true).Name())
	assert.Nil(t, ps.ForLayer(metadata.RenderLayerAlphaTested, false))
	assert.Nil(t, ps.ForLayer(metadata.RenderLayer(-1), false))
}

func TestRenderItemRegistry(t *testing.T) {
	s := newTestScene(t)
	ris, err := NewRenderItemSystem(&RenderItemSystemConfig{MaxObjects: 3, FrameResourceCount: metadata.FrameResourceCount}, s.sm.MaterialSystem, s.sm.GeometrySystem)
	require.NoError(t, err)

	register := func(name string, layer metadata.RenderLayer) metadata.RenderItemHandle {
		h, err := ris.Register(metadata.RenderItem{Name: name, World: math.NewMat4Identity(), Material: s.grass, Mesh: s.mesh}, layer)
		require.NoError(t, err)
		return h
	}
	box := register("box", metadata.RenderLayerAlphaTested)
	water := register("water", metadata.RenderLayerTransparent)
	hills := register("hills", metadata.RenderLayerOpaque)

	_, err = ris.Register(metadata.RenderItem{Name: "extra", Material: s.grass, Mesh: s.mesh}, metadata.RenderLayerOpaque)
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
	_, err = ris.Register(metadata.RenderItem{Name: "nowhere"}, metadata.RenderLayerCount)
	assert.ErrorIs(t, err, core.ErrInvalidLayer)

	var names []string
	for h, ri := range ris.All() {
		assert.Equal(t, int(h), ri.ObjectIndex)
		assert.Equal(t, metadata.FrameResourceCount, ri.NumFramesDirty)
		names = append(names, ri.Name)
	}
	assert.Equal(t, []string{"box", "water", "hills"}, names)

	for h, ri := range ris.IterateLayer(metadata.RenderLayerTransparent) {
		assert.Equal(t, water, h)
		assert.Equal(t, metadata.RenderLayerTransparent, ri.Layer)
	}
	assert.Equal(t, 1, ris.LayerLen(metadata.RenderLayerOpaque))
	assert.Equal(t, 0, ris.LayerLen(metadata.RenderLayerAlphaTestedBillboard))

	ri, err := ris.Get(box)
	require.NoError(t, err)
	ri.NumFramesDirty = 0
	world := math.NewMat4Translation(math.NewVec3(3, 2, -9))
	require.NoError(t, ris.SetTransform(box, world, math.NewMat4Identity()))
	assert.Equal(t, world, ri.World)
	assert.Equal(t, metadata.FrameResourceCount, ri.NumFramesDirty)

	assert.ErrorIs(t, ris.SetTransform(metadata.RenderItemHandle(9), world, world), core.ErrInvalidHandle)
	_, err = ris.Get(hills + 1)
	assert.ErrorIs(t, err, core.ErrInvalidHandle)
}

func TestRenderItemNeedsRegisteredContent(t *testing.T) {
	s := newTestScene(t)
	ris := s.sm.RenderItemSystem

	_, err := ris.Register(metadata.RenderItem{Name: "box", Material: metadata.InvalidHandle, Mesh: s.mesh}, metadata.RenderLayerOpaque)
	assert.ErrorIs(t, err, core.ErrInvalidHandle)
	_, err = ris.Register(metadata.RenderItem{Name: "box", Material: s.water + 1, Mesh: s.mesh}, metadata.RenderLayerOpaque)
	assert.ErrorIs(t, err, core.ErrInvalidHandle)
	_, err = ris.Register(metadata.RenderItem{Name: "box", Material: s.grass, Mesh: metadata.InvalidHandle}, metadata.RenderLayerOpaque)
	assert.ErrorIs(t, err, core.ErrInvalidHandle)
	_, err = ris.Register(metadata.RenderItem{Name: "box", Material: s.grass, Mesh: s.mesh + 1}, metadata.RenderLayerOpaque)
	assert.ErrorIs(t, err, core.ErrInvalidHandle)

	// nothing was registered, the next item still gets the first slot
	assert.Equal(t, 0, ris.Len())
	h := s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())
	ri, err := ris.Get(h)
	require.NoError(t, err)
	assert.Equal(t, 0, ri.ObjectIndex)
}

func TestCameraSystem(t *testing.T) {
	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 1})
	require.NoError(t, err)

	def, err := cs.Acquire(components.DEFAULT_CAMERA_NAME)
	require.NoError(t, err)
	assert.Same(t, cs.GetDefault(), def)

	a, err := cs.Acquire("main")
	require.NoError(t, err)
	again, err := cs.Acquire("main")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = cs.Acquire("debug")
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)

	cs.Release("main")
	cs.Release("main")
	_, ok := cs.Lookup["main"]
	assert.False(t, ok)

	_, err = cs.Acquire("debug")
	assert.NoError(t, err)
}
