// Package options provides the atlas builder option set: defaults, merging,
// parsing from config/CLI/YAML sources, and rendering into command-line
// arguments.
package options

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Option names recognized by the atlas builder.
const (
	KeyResizeKernel          = "resize-kernel"
	KeyRotationEnabled       = "rotation-enabled"
	KeyPadding               = "padding"
	KeyTrimEnabled           = "trim-enabled"
	KeyBoundaryAlignment     = "boundary-alignment"
	KeyTrimBoundaryAlignment = "trim-boundary-alignment"
	KeyOutput                = "output"
	KeyOutputWidth           = "output-width"
	KeyOutputHeight          = "output-height"
	KeyOutputPow2            = "output-pow2"
	KeyOutputJSON            = "output-json"
	KeyOutputImage           = "output-image"
	KeyResolution            = "resolution"
	KeyScaleManifestValues   = "scale-manifest-values"
	KeyFailIfTooBig          = "fail-if-too-big"
	KeyInputFiles            = "input-files"
)

// Sentinel errors for option parsing.
var (
	// ErrInvalidValue is returned when an option value has an unsupported type.
	ErrInvalidValue = errors.New("invalid option value type")

	// ErrInvalidPair is returned when a key=value pair is malformed.
	ErrInvalidPair = errors.New("invalid option pair")
)

// defaults is built once and never handed out directly.
var defaults = New(
	Option{KeyResizeKernel, "linear"},
	Option{KeyRotationEnabled, true},
	Option{KeyPadding, 2},
	Option{KeyTrimEnabled, true},
	Option{KeyBoundaryAlignment, 0},
	Option{KeyTrimBoundaryAlignment, 0},
	Option{KeyOutput, "default"},
	Option{KeyOutputWidth, 8192},
	Option{KeyOutputHeight, 8192},
	Option{KeyOutputPow2, true},
	Option{KeyOutputJSON, true},
	Option{KeyOutputImage, true},
	Option{KeyResolution, 1},
	Option{KeyScaleManifestValues, false},
	Option{KeyFailIfTooBig, false},
	Option{KeyInputFiles, []string{}},
)

// Option is a single named value.
type Option struct {
	Key   string
	Value any
}

// Options is an insertion-ordered set of option values.
// Values can be:
//   - string, bool, or any integer/float kind: generates --key=value
//   - []string: joined with "," (input-files is emitted as positional args)
//
// The zero value is an empty set. Options is immutable: every method that
// changes a value returns a new set.
type Options struct {
	keys   []string
	values map[string]any
}

// New builds an Options from the given values. Repeated keys keep their first
// position and take the last value.
func New(opts ...Option) Options {
	o := Options{values: make(map[string]any, len(opts))}
	for _, opt := range opts {
		o.set(opt.Key, opt.Value)
	}
	return o
}

// Defaults returns a copy of the default option set.
func Defaults() Options {
	return defaults.clone()
}

// KnownKeys returns the recognized option names in default order.
func KnownKeys() []string {
	return slices.Clone(defaults.keys)
}

// IsKnown reports whether key is a recognized option name.
func IsKnown(key string) bool {
	_, ok := defaults.values[key]
	return ok
}

// Len returns the number of options in the set.
func (o Options) Len() int {
	return len(o.keys)
}

// Keys returns option names in insertion order.
func (o Options) Keys() []string {
	return slices.Clone(o.keys)
}

// Get returns the value for key.
func (o Options) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// With returns a copy of o with key set to value.
func (o Options) With(key string, value any) Options {
	c := o.clone()
	c.set(key, value)
	return c
}

// InputFiles returns the positional input file paths.
func (o Options) InputFiles() []string {
	v, ok := o.values[KeyInputFiles]
	if !ok {
		return nil
	}
	switch files := v.(type) {
	case []string:
		return slices.Clone(files)
	case string:
		if files == "" {
			return nil
		}
		return []string{files}
	default:
		return nil
	}
}

func (o *Options) set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	switch list := value.(type) {
	case []string:
		value = slices.Clone(list)
	case []any:
		// Decoded JSON and YAML lists arrive untyped.
		strs := make([]string, len(list))
		for i, item := range list {
			strs[i] = FormatValue(item)
		}
		value = strs
	}
	o.values[key] = value
}

func (o Options) clone() Options {
	c := Options{
		keys:   slices.Clone(o.keys),
		values: make(map[string]any, len(o.values)),
	}
	for k, v := range o.values {
		if files, ok := v.([]string); ok {
			v = slices.Clone(files)
		}
		c.values[k] = v
	}
	return c
}

// Merge combines two option sets with override taking precedence.
// Keys already in base keep their position; keys only in override are
// appended in override's order.
func Merge(base, override Options) Options {
	result := base.clone()
	for _, k := range override.keys {
		result.set(k, override.values[k])
	}
	return result
}

// FromMap validates and normalizes config values into Options.
// Accepts scalars, []string, and []any of strings (common from YAML parsing).
// Keys are sorted since map order carries no meaning.
func FromMap(cfg map[string]any) (Options, error) {
	if len(cfg) == 0 {
		return New(), nil
	}

	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := New()
	for _, k := range keys {
		v, err := normalize(k, cfg[k])
		if err != nil {
			return Options{}, err
		}
		result.set(k, v)
	}
	return result, nil
}

// FromPairs parses "key=value" strings, in order. Values are kept as
// strings. Repeated input-files pairs accumulate.
func FromPairs(pairs []string) (Options, error) {
	result := New()
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimPrefix(strings.TrimSpace(key), "--")
		if !ok || key == "" {
			return Options{}, fmt.Errorf("%w: %q (want key=value)", ErrInvalidPair, pair)
		}

		if key == KeyInputFiles {
			result.set(key, append(result.InputFiles(), value))
			continue
		}
		result.set(key, value)
	}
	return result, nil
}

func normalize(key string, v any) (any, error) {
	switch val := v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val, nil
	case []string:
		return slices.Clone(val), nil
	case []any:
		strs := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s array contains non-string value %T", ErrInvalidValue, key, item)
			}
			strs = append(strs, s)
		}
		return strs, nil
	default:
		return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidValue, key, v)
	}
}
