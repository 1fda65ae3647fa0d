// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader provides composable dataset loader pipelines.
//
// This package wraps the internal loader implementation and exports a clean
// public API for building pipelines from a registry, configuring them with
// options and loading samples.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/dataset/loader"
//	)
//
//	reg := loader.NewRegistry()
//	l, err := reg.Build(loader.BlockSlicerID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts := loader.NewOptions()
//	opts.Set("block_slicer:loader", loader.FolderID)
//	opts.Set("block_slicer:block_size", []int{100, 100})
//	opts.Set("folder:base_dir", "/data/hurricane")
//	opts.Set("io_loader:use_template", true)
//	opts.Set("io_loader:dims", []int{500, 500})
//	opts.Set("io_loader:dtype", "float32")
//	if err := l.SetOptions(opts); err != nil {
//	    log.Fatal(err)
//	}
//
//	n, _ := l.Count()
//	block, err := l.LoadData(n - 1)
package loader

import (
	"context"
	"io"

	"github.com/born-ml/dataset/internal/config"
	"github.com/born-ml/dataset/internal/loader"
	"github.com/born-ml/dataset/internal/logger"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/parallel"
	"github.com/born-ml/dataset/tensor"
)

// Loader is the contract shared by every stage.
//
// Note: This is a type alias because the method signatures reference
// internal option and array types that cannot be abstracted without a
// wrapper layer.
type Loader = loader.Loader

// Registry maps stage ids to constructors.
type Registry = loader.Registry

// Factory returns a default-configured stage.
type Factory = loader.Factory

// RegistryOption is a functional option for NewRegistry.
type RegistryOption = loader.RegistryOption

// Options is the ordered key/value map that configures stages and carries
// sample metadata.
type Options = options.Options

// Logger is the leveled logger stages log to.
type Logger = logger.Logger

// Registry ids of the built-in stages.
const (
	FolderID        = loader.FolderID
	IOLoaderID      = loader.IOLoaderID
	PassthroughID   = loader.PassthroughID
	BlockSlicerID   = loader.BlockSlicerID
	BlockSamplerID  = loader.BlockSamplerID
	RandomSamplerID = loader.RandomSamplerID
	CacheID         = loader.CacheID
	FromDataID      = loader.FromDataID
	HDF5DatasetsID  = loader.HDF5DatasetsID
)

// Metadata keys.
const (
	KeyDims        = loader.KeyDims
	KeyDType       = loader.KeyDType
	KeyPath        = loader.KeyPath
	KeyGroupPrefix = loader.KeyGroupPrefix

	KeyHDF5Dataset     = loader.KeyHDF5Dataset
	KeyHDF5GroupPrefix = loader.KeyHDF5GroupPrefix
)

// NewRegistry returns a registry holding every built-in stage.
func NewRegistry(opts ...RegistryOption) *Registry {
	return loader.NewRegistry(opts...)
}

// OptRegistryLogger sets the logger every built stage logs to.
func OptRegistryLogger(l Logger) RegistryOption {
	return loader.OptRegistryLogger(l)
}

// NewLogger returns a logger writing to w; verbose also enables debug output.
func NewLogger(w io.Writer, verbose bool) Logger {
	if verbose {
		return logger.NewVerboseLogger(w)
	}
	return logger.NewStandardLogger(w)
}

// NewOptions returns empty Options.
func NewOptions() *Options {
	return options.New()
}

// NewFromData returns a stage serving arrays held in memory. reg may be nil.
func NewFromData(reg *Registry, arrays ...*tensor.RawTensor) Loader {
	return loader.NewFromData(reg, arrays...)
}

// OpenPipeline builds the pipeline described by the TOML file at path.
func OpenPipeline(path string, reg *Registry) (Loader, error) {
	p, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return p.Build(reg)
}

// LoadAllData loads the arrays of every sample of l in index order, using
// one clone of l per worker. workers <= 1 loads sequentially.
func LoadAllData(ctx context.Context, l Loader, workers int) ([]*tensor.RawTensor, error) {
	return parallel.LoadAllData(ctx, l, parallel.Workers(workers))
}
