package vulkan

import (
	"sync"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// offsets handed out to buffers start here so zero never names a buffer
const bufferAddressBase = 64 * 1024

/**
 * @brief Supplies the frame ring with device fences, mapped upload buffers
 * and command pools. Draw recording stays with the headless recorder.
 */
type VulkanBackend struct {
	context  *VulkanContext
	timeline *Timeline

	mu          sync.Mutex
	pools       []*CommandPool
	buffers     []*UploadBuffer
	nextAddress uint64
	closed      bool
}

func New(config ContextConfig) (*VulkanBackend, error) {
	context, err := NewContext(config)
	if err != nil {
		return nil, err
	}
	return &VulkanBackend{
		context:     context,
		timeline:    NewTimeline(context),
		nextAddress: bufferAddressBase,
	}, nil
}

func (vb *VulkanBackend) Context() *VulkanContext { return vb.context }

func (vb *VulkanBackend) Signal() (uint64, error) { return vb.timeline.Signal() }

func (vb *VulkanBackend) Completed() uint64 { return vb.timeline.Completed() }

func (vb *VulkanBackend) Wait(marker uint64) error { return vb.timeline.Wait(marker) }

func (vb *VulkanBackend) NewUploadBuffer(stride uint64, count int) (gpu.UploadBuffer, error) {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	if vb.closed {
		return nil, core.ErrDeviceClosed
	}

	address := metadata.GetAligned(vb.nextAddress, bufferAddressBase)
	buffer, err := NewUploadBuffer(vb.context, stride, count, address)
	if err != nil {
		return nil, err
	}
	vb.nextAddress = address + stride*uint64(count)
	vb.buffers = append(vb.buffers, buffer)
	return buffer, nil
}

func (vb *VulkanBackend) NewCommandAllocator() (gpu.CommandAllocator, error) {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	if vb.closed {
		return nil, core.ErrDeviceClosed
	}

	pool, err := NewCommandPool(vb.context)
	if err != nil {
		return nil, err
	}
	vb.pools = append(vb.pools, pool)
	return pool, nil
}

// Close waits for the queue to drain and destroys everything the backend
// created. Buffers the caller did not release are released here.
func (vb *VulkanBackend) Close() error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	if vb.closed {
		return nil
	}
	vb.closed = true

	vb.context.WaitIdle()
	vb.timeline.Destroy()
	for _, pool := range vb.pools {
		pool.Destroy()
	}
	for _, buffer := range vb.buffers {
		buffer.Release()
	}
	vb.pools, vb.buffers = nil, nil
	vb.context.Close()

	core.LogInfo("vulkan backend closed")
	return nil
}
