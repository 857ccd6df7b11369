package bladevk

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gpucontext"

	"github.com/andewx/bladevk/internal/driver"
	"github.com/andewx/bladevk/internal/driver/simulated"
	"github.com/andewx/bladevk/internal/driver/vulkan"
)

const (
	BackendVulkan    = "vulkan"
	BackendSimulated = "simulated"
)

var backends = gpucontext.NewRegistry[driver.Driver](
	gpucontext.WithPriority(BackendVulkan, BackendSimulated),
)

func init() {
	RegisterBackend(BackendVulkan, func() driver.Driver { return vulkan.New() })
	RegisterBackend(BackendSimulated, func() driver.Driver {
		cfg := simulated.DefaultConfig()
		cfg.AutoProcess = true
		return simulated.New(cfg)
	})
}

// RegisterBackend makes a driver available to Init under name. A later
// registration under the same name replaces the earlier one.
func RegisterBackend(name string, factory func() driver.Driver) {
	backends.Register(name, factory)
}

// Backends lists the registered backend names.
func Backends() []string {
	names := backends.Available()
	slices.Sort(names)
	return names
}

func selectBackend(name string) (driver.Driver, string, error) {
	if name == "" {
		name = backends.BestName()
	}
	if name == "" || !backends.Has(name) {
		return nil, "", notSupported(errors.Newf("unknown backend %q", name), "backend selection")
	}
	return backends.Get(name), name, nil
}
