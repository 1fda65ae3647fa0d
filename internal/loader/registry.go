package loader

import (
	"sort"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/logger"
	"github.com/born-ml/dataset/internal/metrics"
)

// Registry ids of the built-in stages.
const (
	FolderID        = "folder"
	IOLoaderID      = "io_loader"
	PassthroughID   = "passthrough"
	BlockSlicerID   = "block_slicer"
	BlockSamplerID  = "block_sampler"
	RandomSamplerID = "random_sampler"
	CacheID         = "cache"
	FromDataID      = "from_data"
	HDF5DatasetsID  = "hdf5_datasets"
)

// Factory returns a default-configured stage. Stages keep reg to build their
// inner stages.
type Factory func(reg *Registry) Loader

// Registry maps stage ids to factories. It is populated once at start-up and
// passed to whatever builds pipelines; Register must not race with Build.
type Registry struct {
	factories map[string]Factory
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// RegistryOption is a functional option for NewRegistry.
type RegistryOption func(r *Registry)

// OptRegistryLogger sets the logger every built stage logs to.
func OptRegistryLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// OptRegistryMetrics sets the counters every built stage reports to.
func OptRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry returns a registry holding every built-in stage.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    logger.NopLogger,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Register(FolderID, func(reg *Registry) Loader { return NewFolder(reg) })
	r.Register(IOLoaderID, func(reg *Registry) Loader { return NewIOLoader(reg) })
	r.Register(PassthroughID, func(reg *Registry) Loader { return NewPassthrough(reg) })
	r.Register(BlockSlicerID, func(reg *Registry) Loader { return NewBlockSlicer(reg) })
	r.Register(BlockSamplerID, func(reg *Registry) Loader { return NewBlockSampler(reg) })
	r.Register(RandomSamplerID, func(reg *Registry) Loader { return NewRandomSampler(reg) })
	r.Register(CacheID, func(reg *Registry) Loader { return NewCache(reg) })
	r.Register(FromDataID, func(reg *Registry) Loader { return NewFromData(reg) })
	r.Register(HDF5DatasetsID, func(reg *Registry) Loader { return NewHDF5Datasets(reg) })
	return r
}

// Register adds or replaces the factory for id.
func (r *Registry) Register(id string, f Factory) {
	r.factories[id] = f
}

// Build returns a new default-configured stage for id.
func (r *Registry) Build(id string) (Loader, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, errors.Newf(errors.ErrMissingSubLoader, "unable to find loader %q", id)
	}
	return f(r), nil
}

// IDs returns every registered id in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Logger returns the registry's logger. A nil registry logs nothing.
func (r *Registry) Logger() logger.Logger {
	if r == nil || r.logger == nil {
		return logger.NopLogger
	}
	return r.logger
}

// Metrics returns the registry's counters, which may be nil.
func (r *Registry) Metrics() *metrics.Metrics {
	if r == nil {
		return nil
	}
	return r.metrics
}
