// Package parallel fans bulk loader work out over worker goroutines.
//
// Loader stages are not safe for concurrent use, so every worker runs on its
// own Clone of the pipeline.
package parallel

import (
	"context"
	"runtime"

	"github.com/born-ml/dataset/internal/loader"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum samples per worker to justify a clone.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4,
	}
}

// Workers returns a config running on n workers, or sequentially for n <= 1.
func Workers(n int) Config {
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// chunks splits [0, n) into contiguous [start, end) ranges, one per worker.
func (cfg Config) chunks(n int) [][2]int {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinChunkSize {
		return [][2]int{{0, n}}
	}
	size := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// Each calls fn(w, i) for every sample index i of l, where w is the worker's
// own clone of l. Indices of one worker are visited in increasing order.
// The first error cancels the remaining work and is returned.
func Each(ctx context.Context, l loader.Loader, cfg Config, fn func(w loader.Loader, i int) error) error {
	n, err := l.Count()
	if err != nil {
		return err
	}

	chunks := cfg.chunks(n)
	if len(chunks) == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(l, i); err != nil {
				return err
			}
		}
		return nil
	}

	// Clone up front so workers never read l concurrently.
	workers := make([]loader.Loader, len(chunks))
	for k := range workers {
		workers[k] = l.Clone()
	}

	g, ctx := errgroup.WithContext(ctx)
	for k, c := range chunks {
		w, start, end := workers[k], c[0], c[1]
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(w, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// LoadAllData loads the arrays of every sample of l in index order.
func LoadAllData(ctx context.Context, l loader.Loader, cfg Config) ([]*tensor.RawTensor, error) {
	n, err := l.Count()
	if err != nil {
		return nil, err
	}
	out := make([]*tensor.RawTensor, n)
	err = Each(ctx, l, cfg, func(w loader.Loader, i int) error {
		raw, err := w.LoadData(i)
		out[i] = raw
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAllMetadata loads the metadata of every sample of l in index order.
func LoadAllMetadata(ctx context.Context, l loader.Loader, cfg Config) ([]*options.Options, error) {
	n, err := l.Count()
	if err != nil {
		return nil, err
	}
	out := make([]*options.Options, n)
	err = Each(ctx, l, cfg, func(w loader.Loader, i int) error {
		md, err := w.LoadMetadata(i)
		out[i] = md
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
