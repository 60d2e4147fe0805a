package headless

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type Op int

const (
	OpSetPipeline Op = iota
	OpSetViewport
	OpClearRenderTarget
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpSetPrimitiveTopology
	OpSetTextureTable
	OpSetObjectConstants
	OpSetPassConstants
	OpSetMaterialConstants
	OpDrawIndexed
)

type DrawArgs struct {
	IndexCount    uint32
	InstanceCount uint32
	StartIndex    uint32
	BaseVertex    int32
	StartInstance uint32
}

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op           Op
	Pipeline     string
	Viewport     metadata.Viewport
	Color        math.Vec4
	VertexBuffer metadata.VertexBufferView
	IndexBuffer  metadata.IndexBufferView
	Topology     metadata.PrimitiveTopology
	// Address holds the constant buffer address or texture table offset.
	Address uint64
	Draw    DrawArgs
}

type commandListState int

const (
	commandListClosed commandListState = iota
	commandListRecording
)

// CommandList records commands into memory. Like a native command list it is
// reset against an allocator, recorded, closed and then executed.
type CommandList struct {
	device   *Device
	alloc    gpu.CommandAllocator
	state    commandListState
	commands []Command
	err      error
}

func (cl *CommandList) Reset(alloc gpu.CommandAllocator, initial gpu.Pipeline) error {
	if cl.state == commandListRecording {
		return fmt.Errorf("command list reset while recording")
	}
	if alloc == nil {
		return fmt.Errorf("command list reset without an allocator")
	}
	cl.alloc = alloc
	cl.state = commandListRecording
	cl.commands = nil
	cl.err = nil
	if initial != nil {
		cl.SetPipeline(initial)
	}
	return nil
}

func (cl *CommandList) Close() error {
	if cl.state != commandListRecording {
		return fmt.Errorf("command list closed twice")
	}
	cl.state = commandListClosed
	return cl.err
}

func (cl *CommandList) record(c Command) {
	if cl.state != commandListRecording {
		if cl.err == nil {
			cl.err = fmt.Errorf("command %d recorded into a closed list", c.Op)
		}
		return
	}
	cl.commands = append(cl.commands, c)
}

func (cl *CommandList) SetPipeline(p gpu.Pipeline) {
	cl.record(Command{Op: OpSetPipeline, Pipeline: p.Name()})
}

func (cl *CommandList) SetViewport(vp metadata.Viewport) {
	cl.record(Command{Op: OpSetViewport, Viewport: vp})
}

func (cl *CommandList) ClearRenderTarget(color math.Vec4) {
	cl.record(Command{Op: OpClearRenderTarget, Color: color})
}

func (cl *CommandList) SetVertexBuffer(view metadata.VertexBufferView) {
	cl.record(Command{Op: OpSetVertexBuffer, VertexBuffer: view})
}

func (cl *CommandList) SetIndexBuffer(view metadata.IndexBufferView) {
	cl.record(Command{Op: OpSetIndexBuffer, IndexBuffer: view})
}

func (cl *CommandList) SetPrimitiveTopology(topology metadata.PrimitiveTopology) {
	cl.record(Command{Op: OpSetPrimitiveTopology, Topology: topology})
}

func (cl *CommandList) SetTextureTable(offset uint64) {
	cl.record(Command{Op: OpSetTextureTable, Address: offset})
}

func (cl *CommandList) SetObjectConstants(addr uint64) {
	cl.record(Command{Op: OpSetObjectConstants, Address: addr})
}

func (cl *CommandList) SetPassConstants(addr uint64) {
	cl.record(Command{Op: OpSetPassConstants, Address: addr})
}

func (cl *CommandList) SetMaterialConstants(addr uint64) {
	cl.record(Command{Op: OpSetMaterialConstants, Address: addr})
}

func (cl *CommandList) DrawIndexed(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	cl.record(Command{Op: OpDrawIndexed, Draw: DrawArgs{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		StartIndex:    startIndex,
		BaseVertex:    baseVertex,
		StartInstance: startInstance,
	}})
}
