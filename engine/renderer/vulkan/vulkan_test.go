package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *VulkanBackend {
	t.Helper()
	if testing.Short() {
		t.Skip("vulkan tests need a device")
	}
	b, err := New(ContextConfig{ApplicationName: "castle-test"})
	if err != nil {
		t.Skipf("no vulkan device: %s", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestResultError(t *testing.T) {
	assert.ErrorIs(t, resultError("wait", vk.ErrorDeviceLost), core.ErrDeviceLost)
	assert.ErrorIs(t, resultError("wait", vk.Timeout), core.ErrSyncFailure)
	assert.ErrorIs(t, resultError("create", vk.ErrorOutOfDeviceMemory), core.ErrResourceCreation)
	assert.Equal(t, "VK_ERROR_DEVICE_LOST", VulkanResultString(vk.ErrorDeviceLost, false))
	assert.Contains(t, VulkanResultString(vk.ErrorDeviceLost, true), "has been lost")
	assert.Equal(t, "VkResult(-999)", VulkanResultString(vk.Result(-999), true))
}

func TestSafeString(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "castle\x00", VulkanSafeString("castle"))
	assert.Equal(t, "castle\x00", VulkanSafeString("castle\x00"))
}

func TestLockPoolSerializesCalls(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	counter := 0
	done := make(chan struct{})
	for range 8 {
		go func() {
			pool.SafeQueueCall(0, func() error {
				counter++
				return nil
			})
			done <- struct{}{}
		}()
	}
	for range 8 {
		<-done
	}
	assert.Equal(t, 8, counter)
	assert.ErrorIs(t, pool.SafeCall(MemoryManagement, func() error { return core.ErrUnknown }), core.ErrUnknown)
}

func TestTimelineCompletesInOrder(t *testing.T) {
	b := newBackend(t)

	first, err := b.Signal()
	require.NoError(t, err)
	second, err := b.Signal()
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	require.NoError(t, b.Wait(second))
	assert.GreaterOrEqual(t, b.Completed(), second)
	// already complete
	require.NoError(t, b.Wait(first))
	assert.Error(t, b.Wait(second+10))
}

func TestUploadBufferIsMapped(t *testing.T) {
	b := newBackend(t)

	buf, err := b.NewUploadBuffer(metadata.ConstantBufferAlignment, 3)
	require.NoError(t, err)
	assert.True(t, metadata.IsAligned(buf.Address(), metadata.ConstantBufferAlignment))
	assert.Equal(t, 3, buf.Len())

	require.NoError(t, buf.CopyData(2, []byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3}, buf.(*UploadBuffer).mapped[2*metadata.ConstantBufferAlignment:][:3])
	assert.ErrorIs(t, buf.CopyData(3, nil), core.ErrCapacityExceeded)

	buf.Release()
	assert.ErrorIs(t, buf.CopyData(0, nil), core.ErrDeviceClosed)
}

func TestCommandPoolReset(t *testing.T) {
	b := newBackend(t)

	alloc, err := b.NewCommandAllocator()
	require.NoError(t, err)
	require.NoError(t, alloc.Reset())

	require.NoError(t, b.Close())
	_, err = b.NewCommandAllocator()
	assert.ErrorIs(t, err, core.ErrDeviceClosed)
}
