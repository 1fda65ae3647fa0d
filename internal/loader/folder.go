package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/lazy"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/dlclark/regexp2"
)

// KeyGroupPrefix prefixes the metadata keys holding regex capture groups.
const KeyGroupPrefix = "folder:group:"

// Folder serves one sample per regular file under folder:base_dir whose path
// fully matches folder:regex, reading each file through its plugin stage
// (an io_loader by default).
//
// Paths are formed as base_dir + "/" + relative path and are matched with
// ECMAScript regex syntax. The scan runs on first use and is repeated only
// after base_dir, regex or recursive change or folder:rescan is given.
type Folder struct {
	stage
	plugin    inner
	recursive bool
	pattern   string
	re        *regexp2.Regexp
	baseDir   string
	groups    []string
	paths     lazy.Cell[[]string]
}

var _ Loader = (*Folder)(nil)

func NewFolder(reg *Registry) *Folder {
	l := &Folder{
		stage:   newStage(reg, FolderID),
		baseDir: ".",
	}
	l.plugin = l.newInner(FolderID+":plugin", DefaultInner)
	if err := l.compile(".+"); err != nil {
		panic(err)
	}
	return l
}

func (l *Folder) compile(pattern string) error {
	re, err := compileFullMatch(l.name, "folder:regex", pattern)
	if err != nil {
		return err
	}
	l.pattern, l.re = pattern, re
	return nil
}

// compileFullMatch compiles pattern, the value of option key, so that it
// only matches whole strings.
func compileFullMatch(name, key, pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile("^(?:"+pattern+")$", regexp2.ECMAScript)
	if err != nil {
		return nil, errors.Newf(errors.ErrInvalidOption, "%s: %v", options.Key(name, key), err)
	}
	return re, nil
}

// setGroups stores capture groups 1..len(groups) of re matched against s in
// md as prefix+<group name>.
func setGroups(md *options.Options, name, prefix string, re *regexp2.Regexp, s string, groups []string) error {
	if len(groups) == 0 {
		return nil
	}
	m, err := re.FindStringMatch(s)
	if err != nil {
		return errors.WithCode(err, errors.ErrInvalidOption)
	}
	if m == nil {
		return nil
	}
	for i := 1; i < m.GroupCount() && i <= len(groups); i++ {
		md.SetNamed(name, prefix+groups[i-1], m.GroupByNumber(i).String())
	}
	return nil
}

func joinPath(base, rel string) string {
	if strings.HasSuffix(base, string(filepath.Separator)) {
		return base + rel
	}
	return base + string(filepath.Separator) + rel
}

// isRegular reports whether the entry is a regular file, following symlinks.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		return err == nil && info.Mode().IsRegular()
	}
	return d.Type().IsRegular()
}

func (l *Folder) scan() ([]string, error) {
	var paths []string
	visit := func(path string, d fs.DirEntry) error {
		if !isRegular(path, d) {
			return nil
		}
		rel, err := filepath.Rel(l.baseDir, path)
		if err != nil {
			return err
		}
		full := joinPath(l.baseDir, rel)
		ok, err := l.re.MatchString(full)
		if err != nil {
			return err
		}
		if ok {
			paths = append(paths, full)
		}
		return nil
	}

	var err error
	if l.recursive {
		err = filepath.WalkDir(l.baseDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			return visit(path, d)
		})
	} else {
		var entries []fs.DirEntry
		if entries, err = os.ReadDir(l.baseDir); err == nil {
			for _, e := range entries {
				if err = visit(filepath.Join(l.baseDir, e.Name()), e); err != nil {
					break
				}
			}
		}
	}
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
	}

	l.metrics().FolderScan(len(paths))
	l.log.Infof("found %d paths under %s", len(paths), l.baseDir)
	return paths, nil
}

// Paths returns the matched paths, scanning on first use.
func (l *Folder) Paths() ([]string, error) {
	paths, err := l.paths.Get(l.scan)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), paths...), nil
}

func (l *Folder) Count() (int, error) {
	paths, err := l.paths.Get(l.scan)
	return len(paths), err
}

// point configures the plugin to read path n and returns that path.
func (l *Folder) point(n int) (string, error) {
	paths, err := l.paths.Get(l.scan)
	if err != nil {
		return "", err
	}
	if err := l.checkIndex(n, len(paths)); err != nil {
		return "", err
	}
	o := options.New()
	o.SetNamed(l.plugin.loader.Name(), KeyPath, paths[n])
	if err := l.plugin.loader.SetOptions(o); err != nil {
		return "", err
	}
	return paths[n], nil
}

func (l *Folder) LoadData(n int) (*tensor.RawTensor, error) {
	if _, err := l.point(n); err != nil {
		return nil, err
	}
	return l.plugin.loader.LoadData(0)
}

func (l *Folder) LoadMetadata(n int) (*options.Options, error) {
	path, err := l.point(n)
	if err != nil {
		return nil, err
	}
	md, err := l.plugin.loader.LoadMetadata(0)
	if err != nil {
		return nil, err
	}
	dims, dtype, err := shapeOf(md, l.plugin.loader.Name())
	if err != nil {
		return nil, err
	}
	l.describe(md, dims, dtype)

	if err := setGroups(md, l.name, KeyGroupPrefix, l.re, path, l.groups); err != nil {
		return nil, err
	}
	return md, nil
}

func (l *Folder) SetOptions(opts *options.Options) error {
	if _, err := l.configureInner(&l.plugin, opts); err != nil {
		return err
	}

	recursive := l.recursive
	if _, err := opts.GetBool(l.name, "folder:recursive", &recursive); err != nil {
		return err
	}
	if recursive != l.recursive {
		l.recursive = recursive
		l.paths.Reset()
	}

	pattern := l.pattern
	if _, err := opts.GetString(l.name, "folder:regex", &pattern); err != nil {
		return err
	}
	if pattern != l.pattern {
		if err := l.compile(pattern); err != nil {
			return err
		}
		l.paths.Reset()
	}

	baseDir := l.baseDir
	if _, err := opts.GetString(l.name, "folder:base_dir", &baseDir); err != nil {
		return err
	}
	if baseDir != l.baseDir {
		l.baseDir = baseDir
		l.paths.Reset()
	}

	if _, err := opts.GetStrings(l.name, "folder:groups", &l.groups); err != nil {
		return err
	}

	var paths []string
	if ok, err := opts.GetStrings(l.name, "folder:paths", &paths); err != nil {
		return err
	} else if ok {
		l.paths.Set(paths)
	}

	if opts.Has(l.name, "folder:rescan") {
		l.paths.Reset()
	}
	return nil
}

func (l *Folder) Options() *options.Options {
	o := options.New()
	l.innerOptions(&l.plugin, o)
	o.SetNamed(l.name, "folder:recursive", l.recursive)
	o.SetNamed(l.name, "folder:regex", l.pattern)
	o.SetNamed(l.name, "folder:base_dir", l.baseDir)
	o.SetNamed(l.name, "folder:groups", append([]string(nil), l.groups...))
	if paths, ok := l.paths.Peek(); ok {
		o.SetNamed(l.name, "folder:paths", append([]string(nil), paths...))
	}
	return o
}

func (l *Folder) Documentation() *options.Options {
	o := options.New()
	l.innerDocumentation(&l.plugin, o, "loader used to read each matched file")
	o.SetNamed(l.name, "folder:recursive", "search base_dir recursively")
	o.SetNamed(l.name, "folder:regex", "load paths that fully match this regex")
	o.SetNamed(l.name, "folder:base_dir", "base directory for the search")
	o.SetNamed(l.name, "folder:groups", "names for the capture groups of the regex, exposed as folder:group:<name>")
	o.SetNamed(l.name, "folder:paths", "list of paths to load instead of scanning")
	o.SetNamed(l.name, "folder:rescan", "force a rescan if set")
	return o
}

func (l *Folder) Clone() Loader {
	c := *l
	c.plugin = l.plugin.clone()
	c.groups = append([]string(nil), l.groups...)
	return &c
}

func (l *Folder) SetName(name string) {
	l.name = name
	l.renameInner(&l.plugin)
}
