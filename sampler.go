package bladevk

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

type SamplerDesc struct {
	Name         string
	AddressModes [3]gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.MipmapFilterMode
	LodMinClamp  float32
	// LodMaxClamp of zero leaves the mip chain unclamped.
	LodMaxClamp float32
	// Compare other than Undefined makes a comparison sampler.
	Compare gputypes.CompareFunction
}

type Sampler struct {
	raw vk.Sampler
}

// lodUnclamped is the maximum LOD used when none is given.
const lodUnclamped = 1000

func (c *Context) CreateSampler(desc SamplerDesc) Sampler {
	maxLod := desc.LodMaxClamp
	if maxLod == 0 {
		maxLod = lodUnclamped
	}
	nd := driver.SamplerDesc{
		MagFilter:  filterModeToVk(desc.MagFilter),
		MinFilter:  filterModeToVk(desc.MinFilter),
		MipmapMode: mipmapFilterModeToVk(desc.MipmapFilter),
		MinLod:     desc.LodMinClamp,
		MaxLod:     maxLod,
	}
	for i, mode := range desc.AddressModes {
		nd.AddressModes[i] = addressModeToVk(mode)
	}
	if desc.Compare != gputypes.CompareFunctionUndefined {
		nd.CompareEnable = true
		nd.CompareOp = CompareOp(desc.Compare)
	}

	raw, err := c.drv.CreateSampler(c.device, nd)
	mustSucceed(err, "create sampler")
	c.setObjectName(vk.ObjectTypeSampler, uintptr(raw), desc.Name)
	return Sampler{raw: raw}
}

func (c *Context) DestroySampler(s Sampler) {
	c.drv.DestroySampler(c.device, s.raw)
}
