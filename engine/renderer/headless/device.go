// Package headless implements gpu.Device in process. A worker goroutine plays
// the part of the asynchronous GPU queue: it consumes submitted command lists
// in order, validates them and advances the completion timeline.
package headless

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/castle/engine/containers"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

const (
	defaultQueueDepth     = 16
	defaultDescriptorSize = 32
	resourceAlignment     = 64 * 1024
	textureTableBase      = 0x7f00_0000_0000
)

// Backend supplies synchronisation, memory and command allocators from a
// real device while the headless recorder keeps recording draws.
type Backend interface {
	gpu.Timeline
	gpu.BufferAllocator
	NewCommandAllocator() (gpu.CommandAllocator, error)
	Close() error
}

// Frame is one executed command list.
type Frame struct {
	ID       uuid.UUID
	Commands []Command
	Draws    int
}

type submission struct {
	frame  *Frame
	marker uint64
}

type pipeline struct {
	desc metadata.PipelineDesc
}

func (p *pipeline) Name() string                { return p.desc.Name }
func (p *pipeline) Desc() metadata.PipelineDesc { return p.desc }

type Option func(*Device)

// WithLatency delays every executed command list, so the CPU can get ahead
// of the simulated GPU.
func WithLatency(latency time.Duration) Option {
	return func(d *Device) { d.latency = latency }
}

// WithAlignment overrides the reported constant buffer alignment.
func WithAlignment(alignment uint64) Option {
	return func(d *Device) { d.alignment = alignment }
}

func WithQueueDepth(depth int) Option {
	return func(d *Device) { d.queueDepth = depth }
}

func WithDescriptorSize(size uint64) Option {
	return func(d *Device) { d.descriptorSize = size }
}

func WithBackend(b Backend) Option {
	return func(d *Device) { d.backend = b }
}

// WithFrameHistory keeps only the last n executed frames for inspection.
// Zero keeps all of them.
func WithFrameHistory(n int) Option {
	return func(d *Device) { d.history = n }
}

type Device struct {
	mu   sync.Mutex
	cond *sync.Cond

	latency        time.Duration
	alignment      uint64
	descriptorSize uint64
	queueDepth     int
	history        int
	backend        Backend

	queue      *containers.RingQueue[submission]
	lastMarker uint64
	completed  uint64
	lost       error
	closed     bool
	done       chan struct{}

	frames      []Frame
	executed    uint64
	draws       uint64
	nextAddress uint64
	pipelines   map[string]*pipeline
	meshes      map[string][]byte
}

func New(opts ...Option) *Device {
	d := &Device{
		alignment:      metadata.ConstantBufferAlignment,
		descriptorSize: defaultDescriptorSize,
		queueDepth:     defaultQueueDepth,
		nextAddress:    resourceAlignment,
		pipelines:      make(map[string]*pipeline),
		meshes:         make(map[string][]byte),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cond = sync.NewCond(&d.mu)
	d.queue = containers.NewRingQueue[submission](d.queueDepth)

	go d.run()

	core.LogInfo("headless device created (alignment=%d, queue depth=%d, latency=%s)", d.alignment, d.queueDepth, d.latency)
	return d
}

func (d *Device) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for d.queue.IsEmpty() && !d.closed {
			d.cond.Wait()
		}
		if d.queue.IsEmpty() {
			d.mu.Unlock()
			return
		}
		sub, _ := d.queue.Dequeue()
		d.cond.Broadcast()
		d.mu.Unlock()

		if sub.frame != nil && d.latency > 0 {
			time.Sleep(d.latency)
		}

		d.mu.Lock()
		switch {
		case d.lost != nil:
			// a lost device executes nothing
		case sub.frame != nil:
			d.executeLocked(sub.frame)
		default:
			d.completed = sub.marker
		}
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

func (d *Device) executeLocked(frame *Frame) {
	if err := d.validate(frame); err != nil {
		d.lost = fmt.Errorf("frame %s: %v: %w", frame.ID, err, core.ErrDeviceLost)
		core.LogError(d.lost.Error())
		return
	}
	if d.history > 0 && len(d.frames) == d.history {
		d.frames = append(d.frames[:0], d.frames[1:]...)
	}
	d.frames = append(d.frames, *frame)
	d.executed++
	d.draws += uint64(frame.Draws)
}

// validate checks the state a draw depends on, the way a debug layer would.
func (d *Device) validate(frame *Frame) error {
	var bound *pipeline
	var topology metadata.PrimitiveTopology
	hasVB, hasIB, hasTopology := false, false, false

	for i, c := range frame.Commands {
		switch c.Op {
		case OpSetPipeline:
			p, ok := d.pipelines[c.Pipeline]
			if !ok {
				return fmt.Errorf("command %d binds unknown pipeline %q", i, c.Pipeline)
			}
			bound = p
		case OpSetVertexBuffer:
			hasVB = true
		case OpSetIndexBuffer:
			hasIB = true
		case OpSetPrimitiveTopology:
			topology, hasTopology = c.Topology, true
		case OpSetObjectConstants, OpSetMaterialConstants, OpSetPassConstants:
			if !metadata.IsAligned(c.Address, d.alignment) {
				return fmt.Errorf("command %d binds constants at %#x, not %d byte aligned", i, c.Address, d.alignment)
			}
		case OpDrawIndexed:
			switch {
			case bound == nil:
				return fmt.Errorf("command %d draws without a pipeline", i)
			case !hasVB || !hasIB:
				return fmt.Errorf("command %d draws without vertex or index buffer", i)
			case !hasTopology || topology != bound.desc.Topology:
				return fmt.Errorf("command %d draws %s with pipeline %q expecting %s", i, topology, bound.desc.Name, bound.desc.Topology)
			case c.Draw.InstanceCount == 0:
				return fmt.Errorf("command %d draws zero instances", i)
			}
			frame.Draws++
		}
	}
	return nil
}

func (d *Device) enqueueLocked(sub submission) error {
	for d.queue.IsFull() && d.lost == nil && !d.closed {
		d.cond.Wait()
	}
	if d.closed {
		return core.ErrDeviceClosed
	}
	if d.lost != nil {
		return d.lost
	}
	if err := d.queue.Enqueue(sub); err != nil {
		return err
	}
	d.cond.Broadcast()
	return nil
}

func (d *Device) Signal() (uint64, error) {
	if d.backend != nil {
		return d.backend.Signal()
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	marker := d.lastMarker + 1
	if err := d.enqueueLocked(submission{marker: marker}); err != nil {
		return 0, err
	}
	d.lastMarker = marker
	return marker, nil
}

func (d *Device) Completed() uint64 {
	if d.backend != nil {
		return d.backend.Completed()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

func (d *Device) Wait(marker uint64) error {
	if d.backend != nil {
		return d.backend.Wait(marker)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if marker > d.lastMarker {
		return fmt.Errorf("marker %d was never signalled", marker)
	}
	for d.completed < marker {
		if d.lost != nil {
			return d.lost
		}
		d.cond.Wait()
	}
	return nil
}

// Lose puts the device in the lost state. Pending and future waits fail.
func (d *Device) Lose(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost == nil {
		d.lost = fmt.Errorf("%s: %w", reason, core.ErrDeviceLost)
	}
	d.cond.Broadcast()
}

func (d *Device) allocateLocked(size uint64) uint64 {
	addr := metadata.GetAligned(d.nextAddress, resourceAlignment)
	d.nextAddress = addr + size
	return addr
}

func (d *Device) NewUploadBuffer(stride uint64, count int) (gpu.UploadBuffer, error) {
	if d.backend != nil {
		return d.backend.NewUploadBuffer(stride, count)
	}
	if stride == 0 || count <= 0 {
		return nil, fmt.Errorf("upload buffer of %d x %d bytes: %w", count, stride, core.ErrResourceCreation)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, core.ErrDeviceClosed
	}
	size := stride * uint64(count)
	return &UploadBuffer{
		data:    make([]byte, size),
		stride:  stride,
		count:   count,
		address: d.allocateLocked(size),
	}, nil
}

func (d *Device) NewCommandAllocator() (gpu.CommandAllocator, error) {
	if d.backend != nil {
		return d.backend.NewCommandAllocator()
	}
	return &commandAllocator{}, nil
}

func (d *Device) CreatePipeline(desc metadata.PipelineDesc) (gpu.Pipeline, error) {
	if desc.Name == "" || desc.VertexShader == "" || desc.PixelShader == "" {
		return nil, fmt.Errorf("pipeline %q needs a name, a vertex and a pixel shader: %w", desc.Name, core.ErrResourceCreation)
	}
	if desc.GeometryShader != "" && desc.Topology != metadata.TopologyPointList {
		return nil, fmt.Errorf("pipeline %q: geometry shader expects point input: %w", desc.Name, core.ErrResourceCreation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipelines[desc.Name]; ok {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Name, core.ErrDuplicateContent)
	}
	p := &pipeline{desc: desc}
	d.pipelines[desc.Name] = p
	return p, nil
}

func (d *Device) UploadMesh(mesh *metadata.MeshGeometry) error {
	vertices := mesh.VertexBytes()
	indices := mesh.IndexBytes()
	if len(vertices) == 0 || len(indices) == 0 {
		return fmt.Errorf("mesh %q is empty: %w", mesh.Name, core.ErrResourceCreation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	mesh.VertexBuffer = metadata.VertexBufferView{
		Address:       d.allocateLocked(uint64(len(vertices))),
		SizeInBytes:   uint32(len(vertices)),
		StrideInBytes: mesh.VertexStride,
	}
	mesh.IndexBuffer = metadata.IndexBufferView{
		Address:     d.allocateLocked(uint64(len(indices))),
		SizeInBytes: uint32(len(indices)),
	}
	d.meshes[mesh.Name] = append(vertices, indices...)
	return nil
}

func (d *Device) CommandList() gpu.CommandList {
	return &CommandList{device: d}
}

func (d *Device) Execute(lists ...gpu.CommandList) error {
	frames := make([]*Frame, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok || cl.device != d {
			return fmt.Errorf("command list does not belong to this device")
		}
		if cl.state != commandListClosed {
			return fmt.Errorf("executing a command list that is still recording")
		}
		frames = append(frames, &Frame{
			ID:       uuid.New(),
			Commands: append([]Command(nil), cl.commands...),
		})
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range frames {
		if d.backend != nil {
			// the backend timeline does not see our queue, record in place
			d.executeLocked(f)
			if d.lost != nil {
				return d.lost
			}
			continue
		}
		if err := d.enqueueLocked(submission{frame: f}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) ConstantBufferAlignment() uint64 {
	return d.alignment
}

func (d *Device) TextureTable() metadata.TextureTable {
	return metadata.TextureTable{Base: textureTableBase, DescriptorSize: d.descriptorSize}
}

// Frames returns a copy of every command list executed so far.
func (d *Device) Frames() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Frame(nil), d.frames...)
}

// ExecutedFrames counts every command list executed, including the ones
// dropped from the frame history.
func (d *Device) ExecutedFrames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executed
}

func (d *Device) TotalDraws() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws
}

// Close drains the queue, stops the worker and closes the backend.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	<-d.done
	core.LogInfo("headless device closed after %d frames", d.executed)

	if d.backend != nil {
		return d.backend.Close()
	}
	return nil
}
