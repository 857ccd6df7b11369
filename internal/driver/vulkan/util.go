package vulkan

import (
	"bytes"
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// instanceExtensions gets a list of instance extensions available on the platform.
func instanceExtensions(cmds *vk.Commands) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(driver.Check("vkEnumerateInstanceExtensionProperties", cmds.EnumerateInstanceExtensionProperties(0, &count, nil)))
	if count == 0 {
		return nil, nil
	}
	list := make([]vk.ExtensionProperties, count)
	orPanic(driver.Check("vkEnumerateInstanceExtensionProperties", cmds.EnumerateInstanceExtensionProperties(0, &count, &list[0])))
	for _, ext := range list[:count] {
		names = append(names, goString(ext.ExtensionName[:]))
	}
	return names, err
}

// deviceExtensions gets a list of extensions available on the provided physical device.
func deviceExtensions(cmds *vk.Commands, gpu vk.PhysicalDevice) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(driver.Check("vkEnumerateDeviceExtensionProperties", cmds.EnumerateDeviceExtensionProperties(gpu, 0, &count, nil)))
	if count == 0 {
		return nil, nil
	}
	list := make([]vk.ExtensionProperties, count)
	orPanic(driver.Check("vkEnumerateDeviceExtensionProperties", cmds.EnumerateDeviceExtensionProperties(gpu, 0, &count, &list[0])))
	for _, ext := range list[:count] {
		names = append(names, goString(ext.ExtensionName[:]))
	}
	return names, err
}

// validationLayers gets a list of layers available on the platform.
func validationLayers(cmds *vk.Commands) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(driver.Check("vkEnumerateInstanceLayerProperties", cmds.EnumerateInstanceLayerProperties(&count, nil)))
	if count == 0 {
		return nil, nil
	}
	list := make([]vk.LayerProperties, count)
	orPanic(driver.Check("vkEnumerateInstanceLayerProperties", cmds.EnumerateInstanceLayerProperties(&count, &list[0])))
	for _, layer := range list[:count] {
		names = append(names, goString(layer.LayerName[:]))
	}
	return names, err
}

func goString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// cStrings holds NUL terminated copies of names and the pointer array the
// native side reads. It must stay reachable until the call returns.
type cStrings struct {
	data [][]byte
	ptrs []uintptr
}

func newCStrings(names []string) *cStrings {
	cs := &cStrings{}
	for _, name := range names {
		b := append([]byte(name), 0)
		cs.data = append(cs.data, b)
		cs.ptrs = append(cs.ptrs, uintptr(unsafe.Pointer(&b[0])))
	}
	return cs
}

func (cs *cStrings) count() uint32 { return uint32(len(cs.ptrs)) }

func (cs *cStrings) pointer() uintptr {
	if len(cs.ptrs) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&cs.ptrs[0]))
}

func (cs *cStrings) keepAlive() {
	runtime.KeepAlive(cs.data)
	runtime.KeepAlive(cs.ptrs)
}

func cString(s string) []byte {
	return append([]byte(s), 0)
}

func cStringPtr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = errors.Newf("%+v", v)
	}
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
