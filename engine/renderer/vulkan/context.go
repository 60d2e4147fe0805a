// Package vulkan backs the frame ring with a real device: its fences drive
// the completion timeline, upload buffers live in host visible memory and
// every frame resource owns a command pool.
package vulkan

import (
	"fmt"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/castle/engine/core"
)

var (
	loaderOnce sync.Once
	loaderErr  error
)

// Init loads the Vulkan library. The loader glfw found is preferred, the
// system default is used when glfw cannot be initialized (no display).
func Init() error {
	loaderOnce.Do(func() {
		if err := glfw.Init(); err == nil {
			if procAddr := glfw.GetVulkanGetInstanceProcAddress(); procAddr != nil {
				vk.SetGetInstanceProcAddr(procAddr)
				loaderErr = vk.Init()
				return
			}
		}
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			loaderErr = fmt.Errorf("failed to load the Vulkan library: %w", err)
			return
		}
		loaderErr = vk.Init()
	})
	return loaderErr
}

type ContextConfig struct {
	ApplicationName string
	// Validation enables VK_LAYER_KHRONOS_validation when it is installed.
	Validation bool
}

/**
 * @brief Holds the instance, the logical device and the graphics queue the
 * backend submits to. Queue access is serialized through the lock pool.
 */
type VulkanContext struct {
	Instance       vk.Instance
	Allocator      *vk.AllocationCallbacks
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Queue          vk.Queue
	QueueFamily    uint32
	DeviceName     string

	memoryProperties vk.PhysicalDeviceMemoryProperties
	locks            *VulkanLockPool
}

func NewContext(config ContextConfig) (*VulkanContext, error) {
	if err := Init(); err != nil {
		core.LogError(err.Error())
		return nil, fmt.Errorf("%v: %w", err, core.ErrResourceCreation)
	}

	vc := &VulkanContext{
		Allocator: nil,
		locks:     NewVulkanLockPool(),
	}
	if err := vc.createInstance(config); err != nil {
		return nil, err
	}
	if err := vc.selectPhysicalDevice(); err != nil {
		vc.destroyInstance()
		return nil, err
	}
	if err := vc.createDevice(); err != nil {
		vc.destroyInstance()
		return nil, err
	}
	vc.locks.SetQueueFamily(vc.QueueFamily)

	vk.GetPhysicalDeviceMemoryProperties(vc.PhysicalDevice, &vc.memoryProperties)
	vc.memoryProperties.Deref()

	core.LogInfo("vulkan device '%s' created (queue family %d)", vc.DeviceName, vc.QueueFamily)
	return vc, nil
}

func (vc *VulkanContext) createInstance(config ContextConfig) error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   VulkanSafeString(config.ApplicationName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        VulkanSafeString("castle"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	if config.Validation && hasLayer(validationLayer) {
		createInfo.EnabledLayerCount = 1
		createInfo.PpEnabledLayerNames = VulkanSafeStrings([]string{validationLayer})
		core.LogDebug("validation layer enabled")
	}

	if res := vk.CreateInstance(&createInfo, vc.Allocator, &vc.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`: %w", VulkanResultString(res, true), core.ErrResourceCreation)
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vc.Instance); err != nil {
		core.LogError(err.Error())
		vc.destroyInstance()
		return err
	}
	return nil
}

const validationLayer = "VK_LAYER_KHRONOS_validation"

func hasLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	vk.EnumerateInstanceLayerProperties(&count, layers)
	for _, layer := range layers {
		layer.Deref()
		if vk.ToString(layer.LayerName[:]) == name {
			return true
		}
	}
	return false
}

// selectPhysicalDevice takes the first device with a graphics queue.
func (vc *VulkanContext) selectPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(vc.Instance, &count, nil)
	if count == 0 {
		err := fmt.Errorf("no device with Vulkan support found: %w", core.ErrResourceCreation)
		core.LogError(err.Error())
		return err
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(vc.Instance, &count, devices)

	for _, device := range devices {
		var familyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
		families := make([]vk.QueueFamilyProperties, familyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)

		for i, family := range families {
			family.Deref()
			if family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
				continue
			}
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(device, &properties)
			properties.Deref()

			vc.PhysicalDevice = device
			vc.QueueFamily = uint32(i)
			vc.DeviceName = vk.ToString(properties.DeviceName[:])
			return nil
		}
	}
	err := fmt.Errorf("no device with a graphics queue found: %w", core.ErrResourceCreation)
	core.LogError(err.Error())
	return err
}

func (vc *VulkanContext) createDevice() error {
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: vc.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	deviceInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}

	var device vk.Device
	if res := vk.CreateDevice(vc.PhysicalDevice, &deviceInfo, vc.Allocator, &device); res != vk.Success {
		err := fmt.Errorf("failed to create the logical device: %s: %w", VulkanResultString(res, false), core.ErrResourceCreation)
		core.LogError(err.Error())
		return err
	}
	vc.LogicalDevice = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, vc.QueueFamily, 0, &queue)
	vc.Queue = queue
	return nil
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has all of propertyFlags, or -1.
func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	for i := uint32(0); i < vc.memoryProperties.MemoryTypeCount; i++ {
		vc.memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(vc.memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// SubmitFence enqueues an empty batch that signals fence once everything
// submitted before it has finished.
func (vc *VulkanContext) SubmitFence(fence vk.Fence) error {
	return vc.locks.SafeQueueCall(vc.QueueFamily, func() error {
		if res := vk.QueueSubmit(vc.Queue, 0, nil, fence); res != vk.Success {
			return resultError("queue submit", res)
		}
		return nil
	})
}

func (vc *VulkanContext) WaitIdle() {
	vc.locks.SafeQueueCall(vc.QueueFamily, func() error {
		vk.DeviceWaitIdle(vc.LogicalDevice)
		return nil
	})
}

func (vc *VulkanContext) Close() {
	if vc.LogicalDevice != nil {
		vc.WaitIdle()
		vk.DestroyDevice(vc.LogicalDevice, vc.Allocator)
		vc.LogicalDevice = nil
	}
	vc.destroyInstance()
}

func (vc *VulkanContext) destroyInstance() {
	if vc.Instance != nil {
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}
