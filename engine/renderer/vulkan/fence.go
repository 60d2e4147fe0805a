package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/castle/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := resultError("failed to create fence", res)
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// FenceWait blocks until the fence is signalled. There is no timeout, a lost
// device is reported as core.ErrDeviceLost.
func (vf *VulkanFence) FenceWait(context *VulkanContext) error {
	if vf.IsSignaled {
		return nil
	}
	res := vk.WaitForFences(context.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, ^uint64(0))
	if res != vk.Success {
		err := resultError("vk_fence_wait", res)
		core.LogError(err.Error())
		return err
	}
	vf.IsSignaled = true
	return nil
}

// Poll reports whether the device signalled the fence, without blocking.
func (vf *VulkanFence) Poll(context *VulkanContext) bool {
	if !vf.IsSignaled && vk.GetFenceStatus(context.LogicalDevice, vf.Handle) == vk.Success {
		vf.IsSignaled = true
	}
	return vf.IsSignaled
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if res := vk.ResetFences(context.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			err := resultError("failed to reset fence", res)
			core.LogError(err.Error())
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}

type pendingMarker struct {
	marker uint64
	fence  *VulkanFence
}

/**
 * @brief Completion timeline built from binary fences. Every Signal submits
 * an empty batch with its own fence; a marker is complete once its fence is.
 * Signalled fences are reset and reused.
 */
type Timeline struct {
	mu      sync.Mutex
	context *VulkanContext

	last      uint64
	completed uint64
	pending   []pendingMarker
	free      []*VulkanFence
}

func NewTimeline(context *VulkanContext) *Timeline {
	return &Timeline{context: context}
}

func (t *Timeline) Signal() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fence, err := t.acquireLocked()
	if err != nil {
		return 0, err
	}
	if err := t.context.SubmitFence(fence.Handle); err != nil {
		t.free = append(t.free, fence)
		core.LogError(err.Error())
		return 0, err
	}
	t.last++
	t.pending = append(t.pending, pendingMarker{marker: t.last, fence: fence})
	return t.last, nil
}

func (t *Timeline) Completed() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.pending) > 0 && t.pending[0].fence.Poll(t.context) {
		t.retireLocked()
	}
	return t.completed
}

func (t *Timeline) Wait(marker uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if marker > t.last {
		return fmt.Errorf("marker %d was never signalled", marker)
	}
	// fences signal in submission order
	for t.completed < marker {
		if err := t.pending[0].fence.FenceWait(t.context); err != nil {
			return err
		}
		t.retireLocked()
	}
	return nil
}

func (t *Timeline) acquireLocked() (*VulkanFence, error) {
	if n := len(t.free); n > 0 {
		fence := t.free[n-1]
		t.free = t.free[:n-1]
		return fence, nil
	}
	return NewFence(t.context, false)
}

func (t *Timeline) retireLocked() {
	head := t.pending[0]
	t.pending = t.pending[1:]
	t.completed = head.marker
	if err := head.fence.FenceReset(t.context); err != nil {
		head.fence.FenceDestroy(t.context)
		return
	}
	t.free = append(t.free, head.fence)
}

// Destroy releases every fence. The queue must be idle.
func (t *Timeline) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pending {
		p.fence.FenceDestroy(t.context)
	}
	for _, f := range t.free {
		f.FenceDestroy(t.context)
	}
	t.pending, t.free = nil, nil
}
