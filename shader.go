package bladevk

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/wgpu/hal/vulkan/vk"
)

const spirvMagic = 0x07230203

type ShaderDesc struct {
	Name string
	// Source is WGSL.
	Source string
}

// ShaderEntry describes one entry point of a precompiled module.
type ShaderEntry struct {
	Name          string
	WorkgroupSize [3]uint32
}

// Shader is a compiled module and the entry points it exports.
type Shader struct {
	raw     vk.ShaderModule
	entries map[string][3]uint32
}

// ShaderFunction names one entry point of a shader.
type ShaderFunction struct {
	Shader *Shader
	Entry  string
}

func (s *Shader) At(entry string) ShaderFunction {
	if _, ok := s.entries[entry]; !ok {
		panic(errors.AssertionFailedf("shader has no entry point %q", entry))
	}
	return ShaderFunction{Shader: s, Entry: entry}
}

// WorkgroupSize reports the workgroup size of a compute entry point.
func (s *Shader) WorkgroupSize(entry string) ([3]uint32, bool) {
	size, ok := s.entries[entry]
	return size, ok && size != [3]uint32{}
}

// CreateShader compiles WGSL into a shader module. Compilation problems
// are returned, native failures are not.
func (c *Context) CreateShader(desc ShaderDesc) (*Shader, error) {
	ast, err := naga.Parse(desc.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q", desc.Name)
	}
	module, err := naga.LowerWithSource(ast, desc.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q", desc.Name)
	}
	issues, err := naga.Validate(module)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q", desc.Name)
	}
	if len(issues) > 0 {
		err := errors.Newf("shader %q: %d validation errors", desc.Name, len(issues))
		for _, issue := range issues {
			err = errors.WithSecondaryError(err, issue)
		}
		return nil, err
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{
		Version:               spirv.Version1_3,
		Debug:                 c.shaderDebug,
		AdjustCoordinateSpace: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q", desc.Name)
	}
	words, err := spirvWords(code)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q", desc.Name)
	}
	return c.newShader(desc.Name, words, entriesOf(module)), nil
}

// CreateShaderFromSPIRV wraps a precompiled module. The module cannot be
// inspected, so the caller lists its entry points.
func (c *Context) CreateShaderFromSPIRV(name string, words []uint32, entries ...ShaderEntry) *Shader {
	m := make(map[string][3]uint32, len(entries))
	for _, e := range entries {
		m[e.Name] = e.WorkgroupSize
	}
	return c.newShader(name, words, m)
}

// LoadSPIRV reads a precompiled module from disk.
func LoadSPIRV(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load spirv")
	}
	words, err := spirvWords(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load spirv %s", path)
	}
	return words, nil
}

func (c *Context) DestroyShader(s *Shader) {
	c.drv.DestroyShaderModule(c.device, s.raw)
	s.raw = 0
}

func (c *Context) newShader(name string, words []uint32, entries map[string][3]uint32) *Shader {
	raw, err := c.drv.CreateShaderModule(c.device, words)
	mustSucceed(err, "create shader module")
	c.setObjectName(vk.ObjectTypeShaderModule, uintptr(raw), name)
	return &Shader{raw: raw, entries: entries}
}

func entriesOf(module *ir.Module) map[string][3]uint32 {
	entries := make(map[string][3]uint32, len(module.EntryPoints))
	for _, ep := range module.EntryPoints {
		var size [3]uint32
		if ep.Stage == ir.StageCompute {
			size = ep.Workgroup
		}
		entries[ep.Name] = size
	}
	return entries
}

// spirvWords reinterprets little-endian SPIR-V bytes as words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 || len(code) < 4 {
		return nil, errors.Newf("spirv length %d is not a whole number of words", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Newf("bad spirv magic %#x", words[0])
	}
	return words, nil
}
