package vulkan

import (
	"slices"
	"testing"
	"unsafe"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

func TestGoString(t *testing.T) {
	var name [256]byte
	copy(name[:], "VK_EXT_debug_utils")
	if got := goString(name[:]); got != driver.ExtDebugUtils {
		t.Errorf("goString = %q", got)
	}
	if got := goString([]byte("no terminator")); got != "no terminator" {
		t.Errorf("goString = %q", got)
	}
}

func TestCStrings(t *testing.T) {
	empty := newCStrings(nil)
	if empty.count() != 0 || empty.pointer() != 0 {
		t.Error("empty list has a pointer array")
	}

	cs := newCStrings([]string{"a", "layer"})
	if cs.count() != 2 {
		t.Fatalf("count = %d", cs.count())
	}
	ptrs := unsafe.Slice((*uintptr)(unsafe.Pointer(cs.pointer())), 2)
	second := unsafe.Slice((*byte)(unsafe.Pointer(ptrs[1])), 6)
	if string(second) != "layer\x00" {
		t.Errorf("second string %q", second)
	}
	cs.keepAlive()
}

func TestRenderingLayoutPass(t *testing.T) {
	layout := renderingLayoutPass(driver.RenderingDesc{
		Width:  8,
		Height: 8,
		Colors: []driver.ColorAttachment{{
			Format:  vk.FormatR8g8b8a8Unorm,
			LoadOp:  vk.AttachmentLoadOpClear,
			StoreOp: vk.AttachmentStoreOpStore,
		}},
		Depth: &driver.DepthAttachment{
			Format:       vk.FormatD32Sfloat,
			DepthLoadOp:  vk.AttachmentLoadOpLoad,
			DepthStoreOp: vk.AttachmentStoreOpDontCare,
		},
	})
	if len(layout.colors) != 1 || layout.colors[0].load != vk.AttachmentLoadOpClear {
		t.Errorf("colors %+v", layout.colors)
	}
	if layout.depth == nil || layout.depth.format != vk.FormatD32Sfloat || layout.depth.store != vk.AttachmentStoreOpDontCare {
		t.Errorf("depth %+v", layout.depth)
	}
}

func TestPipelineBuilder(t *testing.T) {
	blend := vk.PipelineColorBlendAttachmentState{BlendEnable: vk.True, ColorWriteMask: 0xf}
	desc := driver.RenderPipelineDesc{
		Vertex:   driver.ShaderStage{Module: 1, Entry: "vs_main"},
		Fragment: driver.ShaderStage{Module: 1, Entry: "fs_main"},
		Topology: vk.PrimitiveTopologyTriangleList,
		Colors: []driver.ColorTarget{
			{Format: vk.FormatR8g8b8a8Unorm, WriteMask: 0xf},
			{Format: vk.FormatR8g8b8a8Unorm, WriteMask: 0x1, Blend: &blend},
		},
		DepthFormat:  vk.FormatD32Sfloat,
		DepthWrite:   true,
		DepthCompare: vk.CompareOpLess,
	}
	pb := newPipelineBuilder(desc)
	if len(pb.stages) != 2 || pb.stages[1].Stage != vk.ShaderStageFragmentBit {
		t.Fatalf("stages %+v", pb.stages)
	}
	if pb.blendTargets[0].BlendEnable != vk.False || pb.blendTargets[0].ColorWriteMask != 0xf {
		t.Errorf("opaque target %+v", pb.blendTargets[0])
	}
	if pb.blendTargets[1] != blend {
		t.Errorf("blended target %+v", pb.blendTargets[1])
	}
	if pb.depthStencil.DepthTestEnable != vk.True || pb.depthStencil.DepthCompareOp != vk.CompareOpLess {
		t.Errorf("depth state %+v", pb.depthStencil)
	}
	if !slices.Equal(pb.dynamicStates, []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}) {
		t.Errorf("dynamic states %v", pb.dynamicStates)
	}

	info := pb.info(7, 9)
	if info.StageCount != 2 || info.Layout != 7 || info.RenderPass != 9 {
		t.Errorf("create info %+v", info)
	}

	vertexOnly := newPipelineBuilder(driver.RenderPipelineDesc{Vertex: desc.Vertex, DepthFormat: vk.FormatD32Sfloat})
	if len(vertexOnly.stages) != 1 || vertexOnly.colorBlend.AttachmentCount != 0 {
		t.Errorf("depth only pipeline %d stages, %d targets", len(vertexOnly.stages), vertexOnly.colorBlend.AttachmentCount)
	}
}

func TestPipelineLayoutPass(t *testing.T) {
	layout := pipelineLayoutPass(driver.RenderPipelineDesc{
		Colors: []driver.ColorTarget{{Format: vk.FormatB8g8r8a8Unorm}},
	})
	if len(layout.colors) != 1 || layout.depth != nil {
		t.Errorf("layout %+v", layout)
	}
}

// TestLoader exercises the system loader when one is installed.
func TestLoader(t *testing.T) {
	d := New()
	if err := d.Load(); err != nil {
		t.Skipf("no Vulkan loader: %v", err)
	}
	defer d.Close()

	version, err := d.InstanceVersion()
	if err != nil {
		t.Fatal(err)
	}
	if version < driver.MakeVersion(1, 0, 0) {
		t.Errorf("version %#x", version)
	}
	if _, err := d.InstanceExtensions(); err != nil {
		t.Errorf("InstanceExtensions: %v", err)
	}
	if _, err := d.InstanceLayers(); err != nil {
		t.Errorf("InstanceLayers: %v", err)
	}
}
