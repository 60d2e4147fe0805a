package systems

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/components"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
	"github.com/spaghettifunk/castle/engine/renderer/headless"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clearColour = math.NewVec4(0.69, 0.77, 0.87, 1.0)

type testScene struct {
	device *headless.Device
	sm     *SystemManager
	camera *components.Camera

	mesh         metadata.MeshHandle
	grass, water metadata.MaterialHandle
	frames       int
}

func newTestScene(t *testing.T, opts ...headless.Option) *testScene {
	t.Helper()
	device := headless.New(opts...)
	return newTestSceneOn(t, device, device)
}

// newTestSceneOn builds the scene on gd, which may wrap device.
func newTestSceneOn(t *testing.T, device *headless.Device, gd gpu.Device) *testScene {
	t.Helper()
	sm, err := NewSystemManager(&SystemManagerConfig{
		FramebufferWidth:   800,
		FramebufferHeight:  600,
		FrameResourceCount: metadata.FrameResourceCount,
		MaxObjects:         8,
		MaxMaterials:       4,
		MaxTextures:        4,
		MaxGeometries:      2,
		MaxCameras:         2,
		Workers:            2,
		ClearColour:        clearColour,
	}, gd)
	require.NoError(t, err)
	t.Cleanup(func() {
		sm.Shutdown()
		device.Close()
	})

	s := &testScene{device: device, sm: sm, camera: components.NewCamera()}
	s.camera.SetLens(0.25*math.K_PI, sm.RendererSystem.AspectRatio(), 1.0, 1000.0)

	for _, name := range []string{"grass", "water"} {
		_, err := sm.TextureSystem.Register(name, "textures/"+name+".dds")
		require.NoError(t, err)
	}
	s.grass, err = sm.MaterialSystem.Register(metadata.MaterialConfig{
		Name:           "grass",
		ConstantIndex:  0,
		DiffuseTexture: "grass",
		DiffuseAlbedo:  math.NewVec4(1, 1, 1, 1),
		FresnelR0:      math.NewVec3(0.01, 0.01, 0.01),
		Roughness:      0.125,
	})
	require.NoError(t, err)
	s.water, err = sm.MaterialSystem.Register(metadata.MaterialConfig{
		Name:           "water",
		ConstantIndex:  1,
		DiffuseTexture: "water",
		DiffuseAlbedo:  math.NewVec4(1, 1, 1, 0.5),
		FresnelR0:      math.NewVec3(0.1, 0.1, 0.1),
	})
	require.NoError(t, err)

	s.mesh, err = sm.GeometrySystem.BuildShapeGeometry("shapes", []metadata.ShapeConfig{
		{Name: "box", Kind: ShapeBox, Width: 1, Height: 1, Depth: 1, Subdivisions: 3},
		{Name: "grid", Kind: ShapeGrid, Width: 20, Depth: 30, Rows: 60, Columns: 40},
	})
	require.NoError(t, err)

	for _, desc := range []metadata.PipelineDesc{opaquePipeline(), transparentPipeline()} {
		_, err := sm.PipelineSystem.Register(desc)
		require.NoError(t, err)
	}
	require.NoError(t, sm.PipelineSystem.BindLayer(metadata.RenderLayerOpaque, "opaque"))
	require.NoError(t, sm.PipelineSystem.BindLayer(metadata.RenderLayerTransparent, "transparent"))
	return s
}

func (s *testScene) addItem(t *testing.T, name, submesh string, material metadata.MaterialHandle, layer metadata.RenderLayer, world math.Mat4) metadata.RenderItemHandle {
	t.Helper()
	sm, err := s.sm.GeometrySystem.Submesh(s.mesh, submesh)
	require.NoError(t, err)
	h, err := s.sm.RenderItemSystem.Register(metadata.RenderItem{
		Name:         name,
		World:        world,
		TexTransform: math.NewMat4Identity(),
		Material:     material,
		Mesh:         s.mesh,
		Submesh:      sm,
		Topology:     metadata.TopologyTriangleList,
	}, layer)
	require.NoError(t, err)
	return h
}

func (s *testScene) update(t *testing.T) *RendererSystem {
	t.Helper()
	rs := s.sm.RendererSystem
	s.frames++
	require.NoError(t, rs.Update(1.0/60.0, float64(s.frames)/60.0, s.camera))
	return rs
}

func (s *testScene) frame(t *testing.T) {
	t.Helper()
	rs := s.update(t)
	require.NoError(t, rs.Draw())
}

// drain waits until the device executed everything submitted so far.
func (s *testScene) drain(t *testing.T) {
	t.Helper()
	var last uint64
	ring := s.sm.RendererSystem.Ring()
	for i := 0; i < ring.Len(); i++ {
		last = max(last, ring.Slot(i).Marker)
	}
	require.NoError(t, s.device.Wait(last))
}

func objectRecord(t *testing.T, buf gpu.UploadBuffer, index int) metadata.ObjectConstants {
	t.Helper()
	ub, ok := buf.(*headless.UploadBuffer)
	require.True(t, ok)
	var oc metadata.ObjectConstants
	_, err := binary.Decode(ub.Element(index), binary.LittleEndian, &oc)
	require.NoError(t, err)
	return oc
}

func materialRecord(t *testing.T, buf gpu.UploadBuffer, index int) metadata.MaterialConstants {
	t.Helper()
	ub, ok := buf.(*headless.UploadBuffer)
	require.True(t, ok)
	var mc metadata.MaterialConstants
	_, err := binary.Decode(ub.Element(index), binary.LittleEndian, &mc)
	require.NoError(t, err)
	return mc
}

type recordedDraw struct {
	pipeline string
	texture  uint64
	object   uint64
	material uint64
	vertices metadata.VertexBufferView
	args     headless.DrawArgs
}

// replay walks a frame the way the device would and returns the pipeline
// binds and the state every draw ran with.
func replay(f headless.Frame) ([]string, []recordedDraw) {
	var binds []string
	var draws []recordedDraw
	var state recordedDraw
	for _, c := range f.Commands {
		switch c.Op {
		case headless.OpSetPipeline:
			binds = append(binds, c.Pipeline)
			state.pipeline = c.Pipeline
		case headless.OpSetVertexBuffer:
			state.vertices = c.VertexBuffer
		case headless.OpSetTextureTable:
			state.texture = c.Address
		case headless.OpSetObjectConstants:
			state.object = c.Address
		case headless.OpSetMaterialConstants:
			state.material = c.Address
		case headless.OpDrawIndexed:
			d := state
			d.args = c.Draw
			draws = append(draws, d)
		}
	}
	return binds, draws
}

func TestDirtyItemReachesEverySlot(t *testing.T) {
	s := newTestScene(t)
	first := math.NewMat4Translation(math.NewVec3(3, 2, -9))
	h := s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, first)
	ri, err := s.sm.RenderItemSystem.Get(h)
	require.NoError(t, err)

	for i := 1; i <= metadata.FrameResourceCount; i++ {
		s.frame(t)
		assert.Equal(t, metadata.FrameResourceCount-i, ri.NumFramesDirty)
	}
	s.frame(t)
	assert.Equal(t, 0, ri.NumFramesDirty)

	ring := s.sm.RendererSystem.Ring()
	for i := 0; i < ring.Len(); i++ {
		oc := objectRecord(t, ring.Slot(i).ObjectCB, ri.ObjectIndex)
		assert.Equal(t, first.Transposed(), oc.World, "slot %d", i)
	}

	second := math.NewMat4Translation(math.NewVec3(-3, 2, -9))
	require.NoError(t, s.sm.RenderItemSystem.SetTransform(h, second, math.NewMat4Identity()))
	s.frame(t)
	current := s.sm.RendererSystem.CurrentFrame().Index
	for i := 0; i < ring.Len(); i++ {
		oc := objectRecord(t, ring.Slot(i).ObjectCB, ri.ObjectIndex)
		if i == current {
			assert.Equal(t, second.Transposed(), oc.World)
		} else {
			assert.Equal(t, first.Transposed(), oc.World, "slot %d is not written yet", i)
		}
	}

	s.frame(t)
	s.frame(t)
	assert.Equal(t, 0, ri.NumFramesDirty)
	for i := 0; i < ring.Len(); i++ {
		oc := objectRecord(t, ring.Slot(i).ObjectCB, ri.ObjectIndex)
		assert.Equal(t, second.Transposed(), oc.World, "slot %d", i)
	}
}

func TestBoxScenarioAllSlotsAgree(t *testing.T) {
	s := newTestScene(t)
	world := math.NewMat4Scale(math.NewVec3(3, 3, 3)).Mul(math.NewMat4Translation(math.NewVec3(0, 1.5, 0)))
	h := s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, world)
	ri, _ := s.sm.RenderItemSystem.Get(h)
	require.Equal(t, 3, ri.NumFramesDirty)

	for i := 0; i < 3; i++ {
		s.frame(t)
	}
	assert.Equal(t, 0, ri.NumFramesDirty)

	ring := s.sm.RendererSystem.Ring()
	want := objectRecord(t, ring.Slot(0).ObjectCB, 0)
	assert.Equal(t, world.Transposed(), want.World)
	for i := 1; i < ring.Len(); i++ {
		assert.Equal(t, want, objectRecord(t, ring.Slot(i).ObjectCB, 0))
	}
}

func TestInverseTransposeRoundTrip(t *testing.T) {
	s := newTestScene(t)
	world := math.NewMat4Scale(math.NewVec3(2, 1, 3)).Mul(math.NewMat4Translation(math.NewVec3(5, 0, 0)))
	s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, world)
	s.update(t)

	oc := objectRecord(t, s.sm.RendererSystem.CurrentFrame().ObjectCB, 0)

	// transposed back it is the inverse transpose; undoing both gives world
	invTranspose := oc.InvWorldTranspose.Transposed()
	recovered := invTranspose.Transposed().Inverse()
	assert.True(t, recovered.Compare(world, 1e-5), "got %v", recovered.Data)

	assert.InDelta(t, 0.5, oc.InvWorldTranspose.Data[0], 1e-6)
	assert.InDelta(t, 1.0, oc.InvWorldTranspose.Data[5], 1e-6)
	assert.InDelta(t, 1.0/3.0, oc.InvWorldTranspose.Data[10], 1e-6)

	// a normal of the plane x = z stays perpendicular to it
	normal := math.NewVec3(1, 0, -1).TransformNormal(invTranspose)
	tangent := math.NewVec3(1, 0, 1).TransformNormal(world)
	assert.InDelta(t, 0, normal.Dot(tangent), 1e-5)
}

func TestMaterialConstantsPropagate(t *testing.T) {
	s := newTestScene(t)
	s.addItem(t, "water", "grid", s.water, metadata.RenderLayerTransparent, math.NewMat4Identity())
	for i := 0; i < 3; i++ {
		s.frame(t)
	}
	water, _ := s.sm.MaterialSystem.Get(s.water)
	assert.Equal(t, 0, water.NumFramesDirty)

	require.NoError(t, s.sm.MaterialSystem.ScrollUV(s.water, 0, -0.25))
	s.frame(t)
	assert.Equal(t, 2, water.NumFramesDirty)

	mc := materialRecord(t, s.sm.RendererSystem.CurrentFrame().MaterialCB, water.ConstantIndex)
	assert.Equal(t, water.DiffuseAlbedo, mc.DiffuseAlbedo)
	// stored transposed, the v translation moves to row 1
	assert.InDelta(t, 0.75, mc.MatTransform.Data[7], 1e-6)
}

func TestFourthFrameWaitsForFirst(t *testing.T) {
	s := newTestScene(t, headless.WithLatency(10*time.Millisecond))
	s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())

	s.frame(t)
	firstMarker := s.sm.RendererSystem.CurrentFrame().Marker
	require.NotZero(t, firstMarker)
	s.frame(t)
	s.frame(t)

	s.update(t)
	assert.Equal(t, 0, s.sm.RendererSystem.CurrentFrame().Index)
	assert.GreaterOrEqual(t, s.device.Completed(), firstMarker)
	require.NoError(t, s.sm.RendererSystem.Draw())
}

func TestDrawBindsOncePerLayer(t *testing.T) {
	s := newTestScene(t)
	box := s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())
	water := s.addItem(t, "water", "grid", s.water, metadata.RenderLayerTransparent, math.NewMat4Identity())
	hills := s.addItem(t, "hills", "grid", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())

	s.frame(t)
	s.drain(t)

	frames := s.device.Frames()
	require.Len(t, frames, 1)
	f := frames[0]
	require.GreaterOrEqual(t, len(f.Commands), 3)
	assert.Equal(t, headless.OpSetViewport, f.Commands[0].Op)
	assert.Equal(t, float32(800), f.Commands[0].Viewport.Width)
	assert.Equal(t, headless.OpClearRenderTarget, f.Commands[1].Op)
	assert.Equal(t, clearColour, f.Commands[1].Color)
	assert.Equal(t, headless.OpSetPassConstants, f.Commands[2].Op)

	binds, draws := replay(f)
	assert.Equal(t, []string{"opaque", "transparent"}, binds)
	require.Len(t, draws, 3)
	assert.Equal(t, 3, f.Draws)

	slot := s.sm.RendererSystem.CurrentFrame()
	table := s.device.TextureTable()
	mesh, err := s.sm.GeometrySystem.Get(s.mesh)
	require.NoError(t, err)

	// opaque items in registration order, then the transparent one
	for i, h := range []metadata.RenderItemHandle{box, hills, water} {
		ri, err := s.sm.RenderItemSystem.Get(h)
		require.NoError(t, err)
		mat, err := s.sm.MaterialSystem.Get(ri.Material)
		require.NoError(t, err)

		d := draws[i]
		assert.Equal(t, headless.DrawArgs{
			IndexCount:    ri.Submesh.IndexCount,
			InstanceCount: 1,
			StartIndex:    ri.Submesh.StartIndex,
			BaseVertex:    ri.Submesh.BaseVertex,
		}, d.args, ri.Name)
		assert.Equal(t, mesh.VertexBuffer, d.vertices)
		assert.Equal(t, slot.ObjectCB.Address()+uint64(ri.ObjectIndex)*256, d.object, ri.Name)
		assert.Equal(t, slot.MaterialCB.Address()+uint64(mat.ConstantIndex)*256, d.material, ri.Name)
		assert.Equal(t, table.Base+uint64(mat.DiffuseTexture)*table.DescriptorSize, d.texture, ri.Name)
	}
}

func TestLayersUseTheirOwnPipeline(t *testing.T) {
	s := newTestScene(t)
	// same submesh, same material, only the layer differs
	s.addItem(t, "lake", "grid", s.water, metadata.RenderLayerTransparent, math.NewMat4Identity())
	s.addItem(t, "field", "grid", s.water, metadata.RenderLayerOpaque, math.NewMat4Identity())

	s.frame(t)
	s.drain(t)

	frames := s.device.Frames()
	require.Len(t, frames, 1)
	_, draws := replay(frames[0])
	require.Len(t, draws, 2)
	assert.Equal(t, "opaque", draws[0].pipeline)
	assert.Equal(t, "transparent", draws[1].pipeline)
	assert.Equal(t, draws[0].args, draws[1].args)
}

func TestWireframeSwapsOpaquePipeline(t *testing.T) {
	s := newTestScene(t)
	s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())
	s.addItem(t, "water", "grid", s.water, metadata.RenderLayerTransparent, math.NewMat4Identity())

	s.sm.RendererSystem.Wireframe = true
	s.frame(t)
	s.drain(t)

	binds, _ := replay(s.device.Frames()[0])
	assert.Equal(t, []string{"opaque" + WireframeSuffix, "transparent"}, binds)
}

func TestEmptyLayersRecordNothing(t *testing.T) {
	s := newTestScene(t)
	s.frame(t)
	s.drain(t)

	binds, draws := replay(s.device.Frames()[0])
	assert.Empty(t, binds)
	assert.Empty(t, draws)
	assert.Equal(t, uint64(1), s.sm.RendererSystem.FrameNumber)
}

// realignedDevice reports its own constant buffer alignment instead of the
// one the wrapped device validates against.
type realignedDevice struct {
	*headless.Device
	alignment uint64
}

func (d *realignedDevice) ConstantBufferAlignment() uint64 { return d.alignment }

func TestMisalignedConstantsRejected(t *testing.T) {
	device := &realignedDevice{Device: headless.New(headless.WithAlignment(64)), alignment: 64}
	s := newTestSceneOn(t, device.Device, device)
	s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())
	s.addItem(t, "hills", "grid", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())

	// the ring was laid out for 64 byte constants
	device.alignment = metadata.ConstantBufferAlignment
	rs := s.update(t)
	stride := rs.Ring().Current().ObjectCB.Stride()
	require.False(t, metadata.IsAligned(stride, device.alignment))

	err := rs.Draw()
	require.ErrorIs(t, err, core.ErrMisalignedConstantBuffer)
	assert.Equal(t, uint64(0), rs.FrameNumber)
	assert.Empty(t, s.device.Frames())
}

func TestDeviceAlignmentDrivesDraws(t *testing.T) {
	s := newTestScene(t, headless.WithAlignment(64))
	s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())
	s.addItem(t, "hills", "grid", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())
	s.addItem(t, "water", "grid", s.water, metadata.RenderLayerTransparent, math.NewMat4Identity())

	for range 2 {
		s.frame(t)
	}
	s.drain(t)

	stride := s.sm.RendererSystem.Ring().Current().ObjectCB.Stride()
	assert.Equal(t, metadata.GetAligned(metadata.ObjectConstantsSize, 64), stride)
	assert.False(t, metadata.IsAligned(stride, metadata.ConstantBufferAlignment))
	require.Len(t, s.device.Frames(), 2)
	assert.Equal(t, 3, s.device.Frames()[1].Draws)
	assert.Equal(t, uint64(2), s.sm.RendererSystem.FrameNumber)
}

func TestDrawErrors(t *testing.T) {
	s := newTestScene(t)
	assert.Error(t, s.sm.RendererSystem.Draw())

	// no pipeline bound to the alpha tested layer
	s.addItem(t, "fence", "box", s.grass, metadata.RenderLayerAlphaTested, math.NewMat4Identity())
	rs := s.update(t)
	assert.ErrorIs(t, rs.Draw(), core.ErrContentNotFound)
}

func TestShutdownAfterDeviceLoss(t *testing.T) {
	s := newTestScene(t, headless.WithLatency(200*time.Millisecond))
	s.addItem(t, "box", "box", s.grass, metadata.RenderLayerOpaque, math.NewMat4Identity())
	s.frame(t)
	s.device.Lose("driver reset")

	err := s.sm.Shutdown()
	assert.ErrorIs(t, err, core.ErrSyncFailure)
	assert.ErrorIs(t, err, core.ErrDeviceLost)

	// the systems after the renderer were still shut down
	assert.Nil(t, s.sm.RendererSystem.Ring())
	assert.Equal(t, 0, s.sm.RenderItemSystem.Len())
	assert.Panics(t, func() {
		s.sm.JobSystem.Submit(JobTask{OnStart: func() error { return nil }})
	})
}

func TestPassConstants(t *testing.T) {
	s := newTestScene(t)
	s.camera.SetPosition(math.NewVec3(0, 2, -15))

	sun := metadata.Light{Strength: math.NewVec3(0.9, 0.9, 0.9), Direction: math.NewVec3(0.57735, -0.57735, 0.57735)}
	rs := s.sm.RendererSystem
	require.NoError(t, rs.SetLighting(Lighting{
		AmbientLight: math.NewVec4(0.25, 0.25, 0.35, 1.0),
		Lights:       []metadata.Light{sun},
		FogColor:     math.NewVec4(0.7, 0.7, 0.7, 1.0),
		FogStart:     5,
		FogRange:     150,
	}))
	assert.ErrorIs(t, rs.SetLighting(Lighting{Lights: make([]metadata.Light, metadata.MaxLights+1)}), core.ErrCapacityExceeded)

	s.update(t)
	pc := rs.PassConstants()
	assert.Equal(t, math.NewVec3(0, 2, -15), pc.EyePosW)
	assert.Equal(t, math.NewVec2(800, 600), pc.RenderTargetSize)
	assert.Equal(t, float32(1.0), pc.NearZ)
	assert.Equal(t, float32(1000.0), pc.FarZ)
	assert.Equal(t, sun, pc.Lights[0])
	assert.Equal(t, metadata.DefaultLight(), pc.Lights[1])
	assert.Equal(t, float32(150), pc.FogRange)

	view := s.camera.GetView()
	viewProj := view.Mul(s.camera.GetProj())
	assert.Equal(t, view.Transposed(), pc.View)
	assert.True(t, pc.ViewProj.Transposed().Mul(pc.InvViewProj.Transposed()).Compare(math.NewMat4Identity(), 1e-3))
	assert.Equal(t, viewProj.Transposed(), pc.ViewProj)
}
