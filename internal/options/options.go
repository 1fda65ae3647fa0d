// Package options implements the ordered key/value map that configures loader
// stages and carries per-sample metadata.
//
// Keys are plain strings of the form "<prefix>:<key>". A key set on behalf of
// a named stage is scoped as "/<name>:<prefix>:<key>", and lookups on behalf
// of a named stage fall back from the most specific scope to the bare key:
//
//	/outer/inner:k  ->  /outer:k  ->  k
//
// The map is persistent, so Copy is O(1) and copies never observe each
// other's writes.
package options

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/spf13/cast"
)

// Options is an ordered map from string keys to values of any type. The zero
// value is not usable; create one with New.
type Options struct {
	m *immutable.SortedMap[string, interface{}]
}

// New returns an empty Options.
func New() *Options {
	return &Options{m: immutable.NewSortedMap[string, interface{}](nil)}
}

// FromMap returns Options holding every entry of m.
func FromMap(m map[string]interface{}) *Options {
	o := New()
	for k, v := range m {
		o.Set(k, v)
	}
	return o
}

// Key formats key under the scope of name. An empty name leaves the key bare.
func Key(name, key string) string {
	if name == "" {
		return key
	}
	return "/" + name + ":" + key
}

// Len returns the number of entries.
func (o *Options) Len() int {
	return o.m.Len()
}

// Set stores value under key, replacing any previous value.
func (o *Options) Set(key string, value interface{}) {
	o.m = o.m.Set(key, value)
}

// SetNamed stores value under key scoped to name.
func (o *Options) SetNamed(name, key string, value interface{}) {
	o.Set(Key(name, key), value)
}

// Delete removes key if present.
func (o *Options) Delete(key string) {
	o.m = o.m.Delete(key)
}

// Get returns the value stored under exactly key.
func (o *Options) Get(key string) (interface{}, bool) {
	return o.m.Get(key)
}

// Lookup returns the value for key on behalf of name, trying the scope of
// name first and then each parent scope, ending with the bare key.
func (o *Options) Lookup(name, key string) (interface{}, bool) {
	for {
		if v, ok := o.m.Get(Key(name, key)); ok {
			return v, true
		}
		if name == "" {
			return nil, false
		}
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[:i]
		} else {
			name = ""
		}
	}
}

// Has reports whether Lookup would find key on behalf of name.
func (o *Options) Has(name, key string) bool {
	_, ok := o.Lookup(name, key)
	return ok
}

// Keys returns every key in sorted order.
func (o *Options) Keys() []string {
	keys := make([]string, 0, o.m.Len())
	o.Range(func(k string, _ interface{}) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Range calls fn for every entry in key order until fn returns false.
func (o *Options) Range(fn func(key string, value interface{}) bool) {
	itr := o.m.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		if !fn(k, v) {
			return
		}
	}
}

// Copy returns an independent copy of o.
func (o *Options) Copy() *Options {
	return &Options{m: o.m}
}

// Merge copies every entry of other into o, overwriting existing keys.
func (o *Options) Merge(other *Options) {
	if other == nil {
		return
	}
	other.Range(func(k string, v interface{}) bool {
		o.Set(k, v)
		return true
	})
}

// String renders the entries one per line, for logs and debugging.
func (o *Options) String() string {
	var sb strings.Builder
	o.Range(func(k string, v interface{}) bool {
		fmt.Fprintf(&sb, "%s = %v\n", k, v)
		return true
	})
	return sb.String()
}

func invalid(name, key string, value interface{}, err error) error {
	return errors.Newf(errors.ErrInvalidOption, "option %s has invalid value %v: %v", Key(name, key), value, err)
}

// GetInt stores the int found for key on behalf of name into dst. It reports
// whether the key was present; a present value that cannot be converted is
// an InvalidOption error and leaves dst untouched.
func (o *Options) GetInt(name, key string, dst *int) (bool, error) {
	v, ok := o.Lookup(name, key)
	if !ok {
		return false, nil
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return true, invalid(name, key, v, err)
	}
	if i < 0 {
		return true, invalid(name, key, v, fmt.Errorf("must not be negative"))
	}
	*dst = i
	return true, nil
}

// GetUint64 is GetInt for uint64 values.
func (o *Options) GetUint64(name, key string, dst *uint64) (bool, error) {
	v, ok := o.Lookup(name, key)
	if !ok {
		return false, nil
	}
	u, err := cast.ToUint64E(v)
	if err != nil {
		return true, invalid(name, key, v, err)
	}
	*dst = u
	return true, nil
}

// GetBool is GetInt for bool values.
func (o *Options) GetBool(name, key string, dst *bool) (bool, error) {
	v, ok := o.Lookup(name, key)
	if !ok {
		return false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return true, invalid(name, key, v, err)
	}
	*dst = b
	return true, nil
}

// GetString is GetInt for string values.
func (o *Options) GetString(name, key string, dst *string) (bool, error) {
	v, ok := o.Lookup(name, key)
	if !ok {
		return false, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return true, invalid(name, key, v, err)
	}
	*dst = s
	return true, nil
}

// GetStrings is GetInt for string lists.
func (o *Options) GetStrings(name, key string, dst *[]string) (bool, error) {
	v, ok := o.Lookup(name, key)
	if !ok {
		return false, nil
	}
	s, err := cast.ToStringSliceE(v)
	if err != nil {
		return true, invalid(name, key, v, err)
	}
	*dst = s
	return true, nil
}

// GetShape is GetInt for shapes such as block sizes and dims. Every
// dimension must be positive.
func (o *Options) GetShape(name, key string, dst *tensor.Shape) (bool, error) {
	v, ok := o.Lookup(name, key)
	if !ok {
		return false, nil
	}
	ints, err := cast.ToIntSliceE(v)
	if err != nil {
		return true, invalid(name, key, v, err)
	}
	shape := tensor.Shape(ints)
	if err := shape.Validate(); err != nil {
		return true, invalid(name, key, v, err)
	}
	*dst = shape
	return true, nil
}

// GetDataType is GetInt for element types. Values may be a tensor.DataType
// or its name.
func (o *Options) GetDataType(name, key string, dst *tensor.DataType) (bool, error) {
	v, ok := o.Lookup(name, key)
	if !ok {
		return false, nil
	}
	var dt tensor.DataType
	switch t := v.(type) {
	case tensor.DataType:
		dt = t
	case string:
		parsed, err := tensor.ParseDataType(t)
		if err != nil {
			return true, invalid(name, key, v, err)
		}
		dt = parsed
	default:
		return true, invalid(name, key, v, fmt.Errorf("unable to cast %#v of type %T to DataType", v, v))
	}
	if !dt.Valid() {
		return true, invalid(name, key, v, fmt.Errorf("unknown data type"))
	}
	*dst = dt
	return true, nil
}

// GetArray is GetInt for array values.
func (o *Options) GetArray(name, key string, dst **tensor.RawTensor) (bool, error) {
	v, ok := o.Lookup(name, key)
	if !ok {
		return false, nil
	}
	arr, isArr := v.(*tensor.RawTensor)
	if !isArr || arr == nil {
		return true, invalid(name, key, v, fmt.Errorf("unable to cast %T to an array", v))
	}
	*dst = arr
	return true, nil
}
