package bladevk

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Property keys understood by Usage.
const (
	UsageValidation  = "validation"
	UsageCapture     = "capture"
	UsageBackend     = "backend"
	UsageApplication = "application"
	usageBufferCount = "buffer_count"

	// EnvValidation forces validation on when set to a true value.
	EnvValidation = "BLADE_VALIDATION"
)

// DefaultBufferCount is the encoder depth used when a usage does not name one.
const DefaultBufferCount = 2

// ContextDesc configures Init.
type ContextDesc struct {
	// Validation enables the validation layer and shader debug info.
	Validation bool
	// Capture is reserved for external GPU capture tools.
	Capture bool
	// Backend selects a registered backend by name. Empty picks the best.
	Backend string
	// Application is reported to the driver as the application name.
	Application string
}

// CommandEncoderDesc configures CreateCommandEncoder.
type CommandEncoderDesc struct {
	// Name labels every command buffer of the encoder when non-empty.
	Name        string
	BufferCount uint32
}

// Usage is a bag of typed properties read from JSON. A usage may link to
// another one, whose properties act as fallbacks.
type Usage struct {
	Name        string             `json:"name"`
	StringProps map[string]string  `json:"string_props"`
	IntProps    map[string]int     `json:"int_props"`
	BoolProps   map[string]bool    `json:"bool_props"`
	FloatProps  map[string]float32 `json:"float_props"`
	Linked      *Usage             `json:"linked,omitempty"`
}

func NewUsage(name string) *Usage {
	return &Usage{
		Name:        name,
		StringProps: make(map[string]string),
		IntProps:    make(map[string]int),
		BoolProps:   make(map[string]bool),
		FloatProps:  make(map[string]float32),
	}
}

// ParseUsage decodes a usage from JSON.
func ParseUsage(data []byte) (*Usage, error) {
	u := NewUsage("")
	if err := json.Unmarshal(data, u); err != nil {
		return nil, errors.Wrap(err, "parse usage")
	}
	return u, nil
}

// LoadUsage reads a usage file.
func LoadUsage(path string) (*Usage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load usage %s", path)
	}
	return ParseUsage(data)
}

func (u *Usage) HasNext() bool {
	return u.Linked != nil
}

func (u *Usage) GetLinkedUsage() (*Usage, error) {
	if !u.HasNext() {
		return nil, errors.Newf("usage %q has no linked usage", u.Name)
	}
	return u.Linked, nil
}

// BoolProp looks key up along the link chain.
func (u *Usage) BoolProp(key string) (bool, bool) {
	for cur := u; cur != nil; cur = cur.Linked {
		if v, ok := cur.BoolProps[key]; ok {
			return v, true
		}
	}
	return false, false
}

// StringProp looks key up along the link chain.
func (u *Usage) StringProp(key string) (string, bool) {
	for cur := u; cur != nil; cur = cur.Linked {
		if v, ok := cur.StringProps[key]; ok {
			return v, true
		}
	}
	return "", false
}

// IntProp looks key up along the link chain.
func (u *Usage) IntProp(key string) (int, bool) {
	for cur := u; cur != nil; cur = cur.Linked {
		if v, ok := cur.IntProps[key]; ok {
			return v, true
		}
	}
	return 0, false
}

// ContextDesc builds a context descriptor. The environment can force
// validation on.
func (u *Usage) ContextDesc() ContextDesc {
	var desc ContextDesc
	desc.Validation, _ = u.BoolProp(UsageValidation)
	desc.Capture, _ = u.BoolProp(UsageCapture)
	desc.Backend, _ = u.StringProp(UsageBackend)
	desc.Application, _ = u.StringProp(UsageApplication)
	if v, err := strconv.ParseBool(os.Getenv(EnvValidation)); err == nil && v {
		desc.Validation = true
	}
	return desc
}

// EncoderDesc builds the descriptor of the encoder called name, reading
// "<name>.buffer_count".
func (u *Usage) EncoderDesc(name string) CommandEncoderDesc {
	desc := CommandEncoderDesc{Name: name, BufferCount: DefaultBufferCount}
	if n, ok := u.IntProp(name + "." + usageBufferCount); ok && n > 0 {
		desc.BufferCount = uint32(n)
	}
	return desc
}
