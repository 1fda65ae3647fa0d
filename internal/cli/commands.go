package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/loader"
	"github.com/born-ml/dataset/internal/parallel"
	"github.com/born-ml/dataset/internal/source"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/jedib0t/go-pretty/table"
	"github.com/spf13/cobra"
	"github.com/zeebo/blake3"
)

func newCountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of samples in the pipeline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.pipeline()
			if err != nil {
				return err
			}
			n, err := l.Count()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.Stdout, n)
			return nil
		},
	}
}

func newMetadataCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata [index...]",
		Short: "Print the metadata of samples.",
		Long: `metadata prints every metadata key of the given sample indices, or of
every sample when none are given.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.pipeline()
			if err != nil {
				return err
			}
			indices, err := parseIndices(args)
			if err != nil {
				return err
			}
			if len(indices) == 0 {
				n, err := l.Count()
				if err != nil {
					return err
				}
				for i := 0; i < n; i++ {
					indices = append(indices, i)
				}
			}

			t := newTable(a.Stdout, "index", "key", "value")
			for _, i := range indices {
				md, err := l.LoadMetadata(i)
				if err != nil {
					return err
				}
				appendOptions(t, md, i)
			}
			t.Render()
			return nil
		},
	}
}

func parseIndices(args []string) ([]int, error) {
	indices := make([]int, 0, len(args))
	for _, arg := range args {
		i, err := strconv.Atoi(arg)
		if err != nil || i < 0 {
			return nil, errors.Newf(errors.ErrIndexOutOfRange, "invalid sample index %q", arg)
		}
		indices = append(indices, i)
	}
	return indices, nil
}

// digest returns the 16 byte blake3 hash of raw's shape, type and bytes.
func digest(raw *tensor.RawTensor) []byte {
	h := blake3.New()
	_, _ = fmt.Fprintf(h, "%s%v", raw.DType(), []int(raw.Shape()))
	_, _ = h.Write(raw.Data())
	var buf [16]byte
	_, _ = h.Digest().Read(buf[:])
	return buf[:]
}

func newChecksumCommand(a *app) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "checksum",
		Short: "Print a blake3 digest of every sample and of the whole pipeline.",
		Long: `checksum loads every sample and prints its blake3 digest, followed by a
digest over all samples in index order. Two runs of a deterministic pipeline
print the same digests regardless of --workers.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.pipeline()
			if err != nil {
				return err
			}
			n, err := l.Count()
			if err != nil {
				return err
			}

			type sum struct {
				dims  []int
				dtype tensor.DataType
				hash  []byte
			}
			sums := make([]sum, n)
			err = parallel.Each(context.Background(), l, parallel.Workers(workers), func(w loader.Loader, i int) error {
				raw, err := w.LoadData(i)
				if err != nil {
					return err
				}
				sums[i] = sum{dims: raw.Shape().Ints(), dtype: raw.DType(), hash: digest(raw)}
				return nil
			})
			if err != nil {
				return err
			}

			total := blake3.New()
			t := newTable(a.Stdout, "index", "dims", "dtype", "blake3")
			for i, s := range sums {
				_, _ = total.Write(s.hash)
				t.AppendRow(table.Row{i, fmt.Sprint(s.dims), s.dtype, fmt.Sprintf("%x", s.hash)})
			}
			var buf [16]byte
			_, _ = total.Digest().Read(buf[:])
			t.AppendFooter(table.Row{"total", n, "", fmt.Sprintf("%x", buf)})
			t.Render()
			return nil
		},
	}
	workersFlag(cmd, &workers)
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var (
		workers int
		output  string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every sample into one safetensors or HDF5 file.",
		Long: `export loads every sample and writes sample i as the tensor "sample-<i>"
of a safetensors file, or as the float64 dataset "sample-<i>" of an HDF5 file
with --format hdf5.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New(errors.ErrInvalidOption, "an output file is required (--output)")
			}
			if format != source.SafeTensorsID && format != source.HDF5ID {
				return errors.Newf(errors.ErrInvalidOption, "unknown export format %q", format)
			}
			l, err := a.pipeline()
			if err != nil {
				return err
			}
			data, err := parallel.LoadAllData(context.Background(), l, parallel.Workers(workers))
			if err != nil {
				return err
			}

			arrays := make(map[string]*tensor.RawTensor, len(data))
			for i, raw := range data {
				arrays[SampleTensorName(i)] = raw
			}
			if format == source.HDF5ID {
				err = source.WriteHDF5(output, arrays)
			} else {
				err = exportSafeTensors(output, arrays, map[string]string{
					"loader": l.Prefix(),
					"count":  strconv.Itoa(len(data)),
				})
			}
			if err != nil {
				return err
			}
			a.logger.Infof("wrote %d samples to %s", len(data), output)
			return nil
		},
	}
	workersFlag(cmd, &workers)
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write.")
	cmd.Flags().StringVar(&format, "format", source.SafeTensorsID, "output format: safetensors or hdf5.")
	return cmd
}

func exportSafeTensors(output string, arrays map[string]*tensor.RawTensor, meta map[string]string) error {
	f, err := os.Create(output)
	if err != nil {
		return errors.WithCode(errors.Wrap(err, "creating export file"), errors.ErrSinkWriteFailed)
	}
	if err := source.WriteSafeTensors(f, arrays, meta); err != nil {
		_ = f.Close()
		return errors.WithCode(errors.WithMessagef(err, "exporting to %s", output), errors.ErrSinkWriteFailed)
	}
	if err := f.Close(); err != nil {
		return errors.WithCode(errors.Wrapf(err, "closing %s", output), errors.ErrSinkWriteFailed)
	}
	return nil
}

// SampleTensorName is the tensor name export gives sample i.
func SampleTensorName(i int) string {
	return "sample-" + strconv.Itoa(i)
}

func newDocsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "docs <loader-id>",
		Short: "Describe the options a loader accepts.",
		Long: `docs prints every option key a default-configured loader and its inner
loaders accept.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.registry().Build(args[0])
			if err != nil {
				return err
			}
			t := newTable(a.Stdout, "key", "description")
			appendOptions(t, l.Documentation())
			t.Render()
			return nil
		},
	}
}

func newLoadersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "loaders",
		Short: "List the registered loader ids.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range a.registry().IDs() {
				fmt.Fprintln(a.Stdout, id)
			}
			return nil
		},
	}
}
