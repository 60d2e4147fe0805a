// Package gpu describes the graphics device the renderer drives. Backends
// live in sibling packages.
package gpu

import (
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Timeline is a monotonically increasing completion counter shared between
// the CPU and the device queue.
type Timeline interface {
	// Signal enqueues a new marker after all work submitted so far and
	// returns its value.
	Signal() (uint64, error)
	// Completed returns the highest marker the device has reached.
	Completed() uint64
	// Wait blocks until Completed() >= marker. There is no timeout.
	Wait(marker uint64) error
}

// UploadBuffer is a CPU writable array of fixed size elements the device
// reads in place.
type UploadBuffer interface {
	CopyData(index int, data []byte) error
	// Address is the device address of element 0.
	Address() uint64
	// Stride is the element size rounded up to the buffer alignment.
	Stride() uint64
	Len() int
	Release()
}

type BufferAllocator interface {
	NewUploadBuffer(stride uint64, count int) (UploadBuffer, error)
}

// CommandAllocator backs the memory of recorded command lists. It may only
// be reset once the device finished the lists recorded into it.
type CommandAllocator interface {
	Reset() error
}

type Pipeline interface {
	Name() string
	Desc() metadata.PipelineDesc
}

// CommandList records draw work for one frame.
type CommandList interface {
	Reset(alloc CommandAllocator, initial Pipeline) error
	Close() error

	SetPipeline(p Pipeline)
	SetViewport(vp metadata.Viewport)
	ClearRenderTarget(color math.Vec4)
	SetVertexBuffer(view metadata.VertexBufferView)
	SetIndexBuffer(view metadata.IndexBufferView)
	SetPrimitiveTopology(topology metadata.PrimitiveTopology)
	SetTextureTable(offset uint64)
	SetObjectConstants(addr uint64)
	SetPassConstants(addr uint64)
	SetMaterialConstants(addr uint64)
	DrawIndexed(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
}

type Device interface {
	Timeline
	BufferAllocator

	NewCommandAllocator() (CommandAllocator, error)
	CreatePipeline(desc metadata.PipelineDesc) (Pipeline, error)
	// UploadMesh copies the mesh to device memory and fills its buffer views.
	UploadMesh(mesh *metadata.MeshGeometry) error
	CommandList() CommandList
	Execute(lists ...CommandList) error

	ConstantBufferAlignment() uint64
	TextureTable() metadata.TextureTable
	Close() error
}
