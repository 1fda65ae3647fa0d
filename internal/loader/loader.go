package loader

import (
	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/logger"
	"github.com/born-ml/dataset/internal/metrics"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
)

// Metadata keys every stage writes, under its own name, for the sample it
// describes.
const (
	KeyDims  = "loader:dims"
	KeyDType = "loader:dtype"
)

// DefaultInner is the registry id composite stages wrap until configured
// otherwise.
const DefaultInner = IOLoaderID

// Loader is the contract shared by every stage.
type Loader interface {
	// Count returns the number of samples. It only changes after SetOptions
	// or an explicit flush or rescan.
	Count() (int, error)
	// LoadData loads the array of sample n. n outside [0, Count()) is an
	// errors.ErrIndexOutOfRange error.
	LoadData(n int) (*tensor.RawTensor, error)
	// LoadMetadata loads the metadata of sample n, including KeyDims and
	// KeyDType.
	LoadMetadata(n int) (*options.Options, error)
	// SetOptions applies every key the stage and its inner stages know.
	// Unknown keys are ignored; malformed values are an
	// errors.ErrInvalidOption error.
	SetOptions(opts *options.Options) error
	// Options returns the current configuration of the stage and its inner
	// stages.
	Options() *options.Options
	// Documentation describes every accepted key.
	Documentation() *options.Options
	// Clone returns an independent deep copy of the stage chain.
	Clone() Loader
	Name() string
	SetName(name string)
	Prefix() string
}

// LoadAllData loads the arrays of every sample of l in index order.
func LoadAllData(l Loader) ([]*tensor.RawTensor, error) {
	n, err := l.Count()
	if err != nil {
		return nil, err
	}
	out := make([]*tensor.RawTensor, n)
	for i := range out {
		if out[i], err = l.LoadData(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadAllMetadata loads the metadata of every sample of l in index order.
func LoadAllMetadata(l Loader) ([]*options.Options, error) {
	n, err := l.Count()
	if err != nil {
		return nil, err
	}
	out := make([]*options.Options, n)
	for i := range out {
		if out[i], err = l.LoadMetadata(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// stage carries the identity of a loader and the services of the registry
// that built it.
type stage struct {
	prefix string
	name   string
	reg    *Registry
	log    logger.Logger
}

func newStage(reg *Registry, prefix string) stage {
	return stage{
		prefix: prefix,
		reg:    reg,
		log:    reg.Logger().WithPrefix(prefix + ": "),
	}
}

func (s *stage) Name() string   { return s.name }
func (s *stage) Prefix() string { return s.prefix }

func (s *stage) metrics() *metrics.Metrics {
	return s.reg.Metrics()
}

func (s *stage) checkIndex(n, count int) error {
	if n < 0 || n >= count {
		return errors.Newf(errors.ErrIndexOutOfRange, "%s: index %d out of range [0, %d)", s.prefix, n, count)
	}
	return nil
}

// describe records dims and dtype in md under the stage's name.
func (s *stage) describe(md *options.Options, dims tensor.Shape, dtype tensor.DataType) {
	if dims != nil {
		md.SetNamed(s.name, KeyDims, dims.Ints())
	}
	md.SetNamed(s.name, KeyDType, dtype)
}

// shapeOf reads the dims and dtype md reports on behalf of the stage named
// name. A missing dtype reads as tensor.Byte and missing dims as nil.
func shapeOf(md *options.Options, name string) (tensor.Shape, tensor.DataType, error) {
	var dims tensor.Shape
	dtype := tensor.Byte
	if _, err := md.GetShape(name, KeyDims, &dims); err != nil {
		return nil, dtype, err
	}
	if _, err := md.GetDataType(name, KeyDType, &dtype); err != nil {
		return nil, dtype, err
	}
	return dims, dtype, nil
}

// inner is the single owned sub-loader of a composite stage. The option key
// names its registry id; key+"_name" overrides the name it is given.
type inner struct {
	key    string
	id     string
	rename string
	loader Loader
}

func (s *stage) newInner(key, id string) inner {
	l, err := s.reg.Build(id)
	if err != nil {
		panic(err)
	}
	return inner{key: key, id: id, loader: l}
}

// configureInner swaps the sub-loader when opts selects a different registry
// id, then applies opts to it. It reports whether the sub-loader changed.
func (s *stage) configureInner(in *inner, opts *options.Options) (bool, error) {
	var id, rename string
	ok, err := opts.GetString(s.name, in.key, &id)
	if err != nil {
		return false, err
	}
	renamed, err := opts.GetString(s.name, in.key+"_name", &rename)
	if err != nil {
		return false, err
	}

	swapped := false
	if ok && id != in.id {
		l, err := s.reg.Build(id)
		if err != nil {
			return false, err
		}
		s.log.Debugf("%s: %s -> %s", options.Key(s.name, in.key), in.id, id)
		in.id, in.loader = id, l
		swapped = true
	}
	if renamed {
		in.rename = rename
	}
	if swapped || renamed {
		s.renameInner(in)
	}
	return swapped, in.loader.SetOptions(opts)
}

// renameInner names the sub-loader "<name>/<inner prefix>" unless an explicit
// name was configured.
func (s *stage) renameInner(in *inner) {
	switch {
	case in.rename != "":
		in.loader.SetName(in.rename)
	case s.name == "":
		in.loader.SetName("")
	default:
		in.loader.SetName(s.name + "/" + in.loader.Prefix())
	}
}

func (s *stage) innerOptions(in *inner, o *options.Options) {
	o.Merge(in.loader.Options())
	o.SetNamed(s.name, in.key, in.id)
	if in.rename != "" {
		o.SetNamed(s.name, in.key+"_name", in.rename)
	}
}

func (s *stage) innerDocumentation(in *inner, o *options.Options, doc string) {
	o.Merge(in.loader.Documentation())
	o.SetNamed(s.name, in.key, doc)
	o.SetNamed(s.name, in.key+"_name", "explicit name for the inner loader, instead of <name>/<inner prefix>")
}

func (in inner) clone() inner {
	in.loader = in.loader.Clone()
	return in
}
