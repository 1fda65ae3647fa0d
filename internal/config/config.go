// Package config reads pipeline descriptions from TOML files.
//
// A pipeline file names the root stage and carries the options applied to
// it. Keys of the options table may be written flat or grouped into nested
// tables, which are joined with ':':
//
//	loader = "block_slicer"
//	name = ""
//
//	[options]
//	"block_slicer:block_size" = [100, 100]
//	"block_slicer:loader" = "folder"
//
//	[options.folder]
//	base_dir = "/data/hurricane"
//	regex = '(?:[^/]*/)+s(\d+)-([A-Z]+)f(\d+).bin.f32'
//
//	[options."/pressio".block_sampler]
//	seed = 7
//
// The last table yields the scoped key "/pressio:block_sampler:seed".
package config

import (
	"io"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/loader"
	"github.com/born-ml/dataset/internal/options"
	toml "github.com/pelletier/go-toml"
)

// Pipeline is a parsed pipeline description.
type Pipeline struct {
	// Loader is the registry id of the root stage.
	Loader string
	// Name is the name given to the root stage; empty by default.
	Name string
	// Options are applied to the root stage, which forwards them to its
	// inner stages.
	Options *options.Options
}

// LoadFile parses the pipeline description at path.
func LoadFile(path string) (*Pipeline, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "reading pipeline %s", path), errors.ErrInvalidOption)
	}
	return fromTree(tree)
}

// Load parses a pipeline description from r.
func Load(r io.Reader) (*Pipeline, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "reading pipeline"), errors.ErrInvalidOption)
	}
	return fromTree(tree)
}

func fromTree(tree *toml.Tree) (*Pipeline, error) {
	p := &Pipeline{Options: options.New()}
	for _, key := range tree.Keys() {
		var ok bool
		switch key {
		case "loader":
			p.Loader, ok = tree.Get(key).(string)
		case "name":
			p.Name, ok = tree.Get(key).(string)
		case "options":
			var table *toml.Tree
			if table, ok = tree.Get(key).(*toml.Tree); ok {
				flatten("", table.ToMap(), p.Options)
			}
		default:
			return nil, errors.Newf(errors.ErrInvalidOption, "unknown pipeline key %q", key)
		}
		if !ok {
			return nil, errors.Newf(errors.ErrInvalidOption, "pipeline key %q has the wrong type", key)
		}
	}
	if p.Loader == "" {
		return nil, errors.New(errors.ErrInvalidOption, "pipeline does not name a root loader")
	}
	return p, nil
}

// flatten copies every leaf of m into o, joining nested table keys with ':'.
func flatten(prefix string, m map[string]interface{}, o *options.Options) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + ":" + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			flatten(key, sub, o)
			continue
		}
		o.Set(key, v)
	}
}

// Build builds the root stage from reg, names it and applies the options.
func (p *Pipeline) Build(reg *loader.Registry) (loader.Loader, error) {
	l, err := reg.Build(p.Loader)
	if err != nil {
		return nil, err
	}
	l.SetName(p.Name)
	if err := l.SetOptions(p.Options); err != nil {
		return nil, errors.Wrapf(err, "configuring %s", p.Loader)
	}
	return l, nil
}
