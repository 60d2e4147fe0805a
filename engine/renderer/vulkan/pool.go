package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/castle/engine/core"
)

type LockGroup string

const (
	CommandPoolManagement LockGroup = "command_pool_management"
	MemoryManagement      LockGroup = "memory_management"
)

// Mutex pool
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	vs.mu.Unlock()

	l.Lock()
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	defer l.Unlock()

	return fn()
}

func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

// SafeQueueCall runs fn while holding the queue of the family. Queues must
// be externally synchronized.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	vs.mu.Lock()
	l := vs.queueMutexes[queueFamilyIndex]
	vs.mu.Unlock()

	l.Lock()
	defer l.Unlock()

	return fn()
}

// CommandPool is the allocator of one frame resource.
type CommandPool struct {
	context *VulkanContext
	Handle  vk.CommandPool
}

func NewCommandPool(context *VulkanContext) (*CommandPool, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: context.QueueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}

	var handle vk.CommandPool
	err := context.locks.SafeCall(CommandPoolManagement, func() error {
		if res := vk.CreateCommandPool(context.LogicalDevice, &poolInfo, context.Allocator, &handle); res != vk.Success {
			return resultError("failed to create command pool", res)
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &CommandPool{context: context, Handle: handle}, nil
}

// Reset recycles every command buffer allocated from the pool. The caller
// waits for the frame fence first.
func (cp *CommandPool) Reset() error {
	if res := vk.ResetCommandPool(cp.context.LogicalDevice, cp.Handle, 0); res != vk.Success {
		err := resultError("failed to reset command pool", res)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (cp *CommandPool) Destroy() {
	if cp.Handle == nil {
		return
	}
	cp.context.locks.SafeCall(CommandPoolManagement, func() error {
		vk.DestroyCommandPool(cp.context.LogicalDevice, cp.Handle, cp.context.Allocator)
		return nil
	})
	cp.Handle = nil
}
