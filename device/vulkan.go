package device

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// DefaultVulkanApplicationInfo application info describes a Vulkan application
var DefaultVulkanApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 1, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   "KoruXR\x00",
	PEngineName:        "Koru3D\x00",
}

// VulkanFormat maps a Format to its Vulkan equivalent
func VulkanFormat(f Format) (vk.Format, error) {
	switch f {
	case FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm, nil
	case FormatRGBA8Srgb:
		return vk.FormatR8g8b8a8Srgb, nil
	case FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm, nil
	case FormatBGRA8Srgb:
		return vk.FormatB8g8r8a8Srgb, nil
	case FormatRGBA16Float:
		return vk.FormatR16g16b16a16Sfloat, nil
	}
	return vk.FormatUndefined, fmt.Errorf("format %s has no vulkan equivalent", f)
}

// NewVulkanDevice creates a Vulkan instance and enumerates the
// physical devices available to it.
func NewVulkanDevice(appInfo *vk.ApplicationInfo) (Device, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, errors.New("vk.SetDefaultGetInstanceProcAddr(): " + err.Error())
	}

	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	v := &Vulkan{}
	instanceInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &v.instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(v.instance)

	if err := v.enumerateDevices(); err != nil {
		vk.DestroyInstance(v.instance, nil)
		return nil, err
	}

	return v, nil
}

// Vulkan is a Vulkan API device
type Vulkan struct {
	availableDevices []vk.PhysicalDevice

	instance vk.Instance
}

func (v *Vulkan) enumerateDevices() error {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(v.instance, &deviceCount, nil)); err != nil {
		return fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	v.availableDevices = make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(v.instance, &deviceCount, v.availableDevices)); err != nil {
		return fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	return nil
}

// Backend implements interface
func (v *Vulkan) Backend() Backend {
	return BackendVulkan
}

// PhysicalDevices implements interface. A device whose extensions or
// layers cannot be listed is reported as invalid.
func (v *Vulkan) PhysicalDevices() []PhysicalDeviceInfo {
	infos := make([]PhysicalDeviceInfo, 0, len(v.availableDevices))
	for _, pd := range v.availableDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()

		extensions, extErr := deviceExtensions(pd)
		layers, layerErr := deviceLayers(pd)
		infos = append(infos, PhysicalDeviceInfo{
			ID:            int(properties.DeviceID),
			VendorID:      int(properties.VendorID),
			DriverVersion: int(properties.DriverVersion),
			Name:          vk.ToString(properties.DeviceName[:]),
			Invalid:       extErr != nil || layerErr != nil,
			Extensions:    extensions,
			Layers:        layers,
			Memory:        localMemory(pd),
		})
	}
	return infos
}

func deviceExtensions(pd vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, p := range props[:count] {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

func deviceLayers(pd vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, count)
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(pd, &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, p := range props[:count] {
		p.Deref()
		names = append(names, vk.ToString(p.LayerName[:]))
	}
	return names, nil
}

// localMemory sums the heaps local to the device, shared system
// memory is not counted
func localMemory(pd vk.PhysicalDevice) uint64 {
	var mem vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &mem)
	mem.Deref()

	var total uint64
	for _, heap := range mem.MemoryHeaps[:mem.MemoryHeapCount] {
		heap.Deref()
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			total += uint64(heap.Size)
		}
	}
	return total
}

// Destroy implements interface
func (v *Vulkan) Destroy() {
	if v == nil {
		return
	}
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}
