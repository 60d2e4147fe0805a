package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/castle/engine/core"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

// Only the results the backend can run into are described.
var resultDescriptions = map[vk.Result]string{
	vk.Timeout:                 "A wait operation has not completed in the specified time",
	vk.ErrorOutOfHostMemory:    "A host memory allocation has failed.",
	vk.ErrorOutOfDeviceMemory:  "A device memory allocation has failed.",
	vk.ErrorDeviceLost:         "The logical or physical device has been lost.",
	vk.ErrorMemoryMapFailed:    "Mapping of a memory object has failed.",
	vk.ErrorIncompatibleDriver: "The requested version of Vulkan is not supported by the driver.",
}

func VulkanResultString(result vk.Result, getExtended bool) string {
	name, ok := resultNames[result]
	if !ok {
		name = fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if desc, ok := resultDescriptions[result]; ok && getExtended {
		return name + " " + desc
	}
	return name
}

// resultError wraps a failed call. A lost device maps to core.ErrDeviceLost,
// timeouts to core.ErrSyncFailure and the rest to core.ErrResourceCreation.
func resultError(op string, result vk.Result) error {
	var sentinel error
	switch result {
	case vk.ErrorDeviceLost:
		sentinel = core.ErrDeviceLost
	case vk.Timeout, vk.NotReady:
		sentinel = core.ErrSyncFailure
	default:
		sentinel = core.ErrResourceCreation
	}
	return fmt.Errorf("%s: %s: %w", op, VulkanResultString(result, false), sentinel)
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	for i := range list {
		list[i] = VulkanSafeString(list[i])
	}
	return list
}
