// Package loader implements composable dataset loader stages.
//
// Every stage implements Loader: it reports how many samples it can produce
// and loads the array data and metadata of one sample by index. Composite
// stages own exactly one inner stage and transform its samples:
//   - folder: enumerates files under a directory that match a regex and
//     reads each through a single-file stage
//   - io_loader: reads one array from one file through a source.Reader
//   - block_slicer: tiles every inner sample into fixed-shape blocks
//   - block_sampler: draws seeded random blocks out of every inner sample
//   - random_sampler: serves a frozen random subset of inner indices
//   - cache: memoizes counts, data and metadata of the inner stage
//   - passthrough: forwards everything under a different name
//   - from_data: serves arrays held in memory
//
// Pipelines are assembled from configuration. A Registry maps stage ids to
// constructors; a composite stage picks its inner stage by id from the
// "<prefix>:loader" option and forwards the same options to it:
//
//	reg := loader.NewRegistry()
//	l, _ := reg.Build("block_slicer")
//	opts := options.New()
//	opts.Set("block_slicer:block_size", []int{100, 100})
//	opts.Set("block_slicer:loader", "folder")
//	opts.Set("folder:base_dir", "/data")
//	opts.Set("io_loader:use_template", true)
//	opts.Set("io_loader:dims", []int{500, 500})
//	opts.Set("io_loader:dtype", "float32")
//	if err := l.SetOptions(opts); err != nil {
//	    log.Fatal(err)
//	}
//	n, _ := l.Count()
//
// Stages are not safe for concurrent use. Give each goroutine its own Clone.
package loader
