package bladevk

import (
	"slices"

	"github.com/andewx/bladevk/internal/driver"
)

type capabilityLevel int

const (
	capabilityRequired capabilityLevel = iota
	capabilityOptional
)

type capabilityScope int

const (
	scopeInstance capabilityScope = iota
	scopeDevice
)

// bootstrapState collects what enabled capabilities switch on.
type bootstrapState struct {
	portability bool
	device      driver.DeviceDesc
}

// capability is one row of the negotiation table. when decides whether the
// row applies at all, apply runs once the extension is enabled.
type capability struct {
	name  string
	level capabilityLevel
	scope capabilityScope
	when  func(*bootstrapState) bool
	apply func(*bootstrapState)
}

// capabilities is the negotiation table.
var capabilities = []capability{
	{name: driver.ExtDebugUtils, level: capabilityRequired, scope: scopeInstance},
	{name: driver.ExtGetPhysicalDeviceProperties2, level: capabilityRequired, scope: scopeInstance},
	{
		name:  driver.ExtPortabilityEnumeration,
		level: capabilityOptional,
		scope: scopeInstance,
		apply: func(s *bootstrapState) { s.portability = true },
	},
	{
		name:  driver.ExtInlineUniformBlock,
		level: capabilityRequired,
		scope: scopeDevice,
		apply: func(s *bootstrapState) { s.device.InlineUniformBlock = true },
	},
	{
		name:  driver.ExtTimelineSemaphore,
		level: capabilityRequired,
		scope: scopeDevice,
		apply: func(s *bootstrapState) { s.device.TimelineSemaphore = true },
	},
	{name: driver.ExtDescriptorUpdateTemplate, level: capabilityRequired, scope: scopeDevice},
	{
		name:  driver.ExtPortabilitySubset,
		level: capabilityRequired,
		scope: scopeDevice,
		when:  func(s *bootstrapState) bool { return s.portability },
	},
}

// extensionSet matches wanted and required names against what the driver
// reports.
type extensionSet struct {
	wanted   []string
	required []string
	actual   []string
}

func newExtensionSet(scope capabilityScope, state *bootstrapState, actual []string) *extensionSet {
	set := &extensionSet{actual: actual}
	for _, c := range capabilities {
		if c.scope != scope || (c.when != nil && !c.when(state)) {
			continue
		}
		if c.level == capabilityRequired {
			set.required = append(set.required, c.name)
		} else {
			set.wanted = append(set.wanted, c.name)
		}
	}
	return set
}

func (e *extensionSet) missing(names []string) []string {
	var out []string
	for _, name := range names {
		if !slices.Contains(e.actual, name) {
			out = append(out, name)
		}
	}
	return out
}

// HasRequired reports whether every required extension is present, and
// lists the missing ones.
func (e *extensionSet) HasRequired() (bool, []string) {
	m := e.missing(e.required)
	return len(m) == 0, m
}

// HasWanted is HasRequired for optional extensions.
func (e *extensionSet) HasWanted() (bool, []string) {
	m := e.missing(e.wanted)
	return len(m) == 0, m
}

// Enabled lists the required extensions followed by the wanted ones that
// are present.
func (e *extensionSet) Enabled() []string {
	out := slices.Clone(e.required)
	for _, name := range e.wanted {
		if slices.Contains(e.actual, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// apply runs the table hooks for every enabled extension of scope.
func (e *extensionSet) apply(scope capabilityScope, state *bootstrapState) {
	enabled := e.Enabled()
	for _, c := range capabilities {
		if c.scope == scope && c.apply != nil && slices.Contains(enabled, c.name) {
			c.apply(state)
		}
	}
}
