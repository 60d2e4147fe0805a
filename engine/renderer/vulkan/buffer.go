package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/castle/engine/core"
)

// UploadBuffer is a uniform buffer in host visible, coherent memory. It
// stays mapped until Release, CopyData writes straight into the mapping.
type UploadBuffer struct {
	mu      sync.Mutex
	context *VulkanContext

	Handle vk.Buffer
	Memory vk.DeviceMemory
	mapped []byte

	stride  uint64
	count   int
	address uint64
}

func NewUploadBuffer(context *VulkanContext, stride uint64, count int, address uint64) (*UploadBuffer, error) {
	if stride == 0 || count <= 0 {
		return nil, fmt.Errorf("upload buffer of %d x %d bytes: %w", count, stride, core.ErrResourceCreation)
	}
	size := stride * uint64(count)
	b := &UploadBuffer{context: context, stride: stride, count: count, address: address}

	err := context.locks.SafeCall(MemoryManagement, func() error {
		bufferInfo := vk.BufferCreateInfo{
			SType:       vk.StructureTypeBufferCreateInfo,
			Size:        vk.DeviceSize(size),
			Usage:       vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			SharingMode: vk.SharingModeExclusive,
		}
		if res := vk.CreateBuffer(context.LogicalDevice, &bufferInfo, context.Allocator, &b.Handle); res != vk.Success {
			return resultError("failed to create buffer", res)
		}

		var requirements vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(context.LogicalDevice, b.Handle, &requirements)
		requirements.Deref()

		flags := uint32(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
		index := context.FindMemoryIndex(requirements.MemoryTypeBits, flags)
		if index == -1 {
			return fmt.Errorf("no host visible memory for the buffer: %w", core.ErrResourceCreation)
		}
		allocateInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  requirements.Size,
			MemoryTypeIndex: uint32(index),
		}
		if res := vk.AllocateMemory(context.LogicalDevice, &allocateInfo, context.Allocator, &b.Memory); res != vk.Success {
			return resultError("failed to allocate buffer memory", res)
		}
		if res := vk.BindBufferMemory(context.LogicalDevice, b.Handle, b.Memory, 0); res != vk.Success {
			return resultError("failed to bind buffer memory", res)
		}

		var ptr unsafe.Pointer
		if res := vk.MapMemory(context.LogicalDevice, b.Memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
			return resultError("failed to map buffer memory", res)
		}
		b.mapped = unsafe.Slice((*byte)(ptr), size)
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		b.destroy()
		return nil, err
	}
	return b, nil
}

func (b *UploadBuffer) CopyData(index int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped == nil {
		return fmt.Errorf("copy into released buffer: %w", core.ErrDeviceClosed)
	}
	if index < 0 || index >= b.count {
		return fmt.Errorf("element %d of %d: %w", index, b.count, core.ErrCapacityExceeded)
	}
	if uint64(len(data)) > b.stride {
		return fmt.Errorf("record of %d bytes does not fit stride %d: %w", len(data), b.stride, core.ErrCapacityExceeded)
	}
	copy(b.mapped[uint64(index)*b.stride:], data)
	return nil
}

// Address is the offset the backend handed out for this buffer, binding
// happens through descriptors and never needs a device address.
func (b *UploadBuffer) Address() uint64 { return b.address }

func (b *UploadBuffer) Stride() uint64 { return b.stride }

func (b *UploadBuffer) Len() int { return b.count }

func (b *UploadBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroy()
}

func (b *UploadBuffer) destroy() {
	device := b.context.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.Memory)
		b.mapped = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(device, b.Memory, b.context.Allocator)
		b.Memory = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		b.Handle = nil
	}
}
