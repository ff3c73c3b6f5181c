// Package config loads service configuration from struct tag defaults, an
// optional YAML or JSON file and environment variables, in that order of
// increasing priority.
//
// Three struct tags drive the loader:
//
//   - `env:"NAME"` binds a field to an environment variable. On a nested
//     struct the tag becomes a prefix for the struct's fields.
//   - `envDefault:"value"` seeds a zero-valued field.
//   - `required:"true"` rejects a field still zero after loading.
//
// File loading uses the `yaml` and `json` tags of the target struct.
//
//	type ServerConfig struct {
//	    Addr    string        `env:"HTTP_ADDR" envDefault:":8080" yaml:"addr"`
//	    Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s" yaml:"timeout"`
//	}
//
//	var cfg ServerConfig
//	err := config.New().WithFile("whisper.yaml").Load(&cfg)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// LookupFunc resolves an environment variable. It matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Validator is implemented by configuration structs that need checks beyond
// `required` tags. Validate runs after tag validation succeeds. Errors that
// are not *sserr.Error are wrapped with sserr.CodeValidation.
type Validator interface {
	Validate() error
}

// Loader resolves configuration into a struct. A Loader is not safe for
// concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
	lookup    LookupFunc
}

// New returns a Loader that reads the process environment only.
func New() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithEnvPrefix prepends PREFIX_ to every environment variable name.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile adds a .yaml, .yml or .json file layer. A missing file is
// ignored; a path containing ".." is rejected by Load.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithLookup replaces the environment source. Tests use it to avoid
// mutating the process environment.
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	if fn != nil {
		l.lookup = fn
	}
	return l
}

// Load fills cfg, which must be a non-nil pointer to a struct, and then
// validates it. Loading failures carry sserr.CodeInternalConfiguration;
// a missing required field carries sserr.CodeValidationRequired.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()

	err := walk(rv, "", "", func(f field) error {
		def, ok := f.tag.Lookup("envDefault")
		if !ok || !f.value.IsZero() {
			return nil
		}
		if err := setField(f.value, def); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: bad default for field %q", f.path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	err = walk(rv, l.envPrefix, "", func(f field) error {
		if f.envKey == "" {
			return nil
		}
		val, ok := l.lookup(f.envKey)
		if !ok {
			return nil
		}
		if err := setField(f.value, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: cannot set field %q from %s", f.path, f.envKey)
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = walk(rv, "", "", func(f field) error {
		if f.tag.Get("required") == "true" && f.value.IsZero() {
			return sserr.Newf(sserr.CodeValidationRequired,
				"config: required field %q is empty", f.path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, structured := sserr.AsError(err); structured {
				return err
			}
			return sserr.Wrap(err, sserr.CodeValidation, "config: validation failed")
		}
	}
	return nil
}

// MustLoad loads a T or panics. Intended for main packages.
func MustLoad[T any](l *Loader) T {
	var cfg T
	if err := l.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain \"..\"")
	}
	data, err := os.ReadFile(l.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q", ext)
	}
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to parse %q", l.filePath)
	}
	return nil
}

// field is a settable leaf visited by walk.
type field struct {
	value  reflect.Value
	tag    reflect.StructTag
	path   string
	envKey string
}

// walk visits every settable non-struct field of rv depth first. Nested
// structs extend both the dotted path and, when tagged with env, the
// environment key prefix.
func walk(rv reflect.Value, envPrefix, path string, visit func(field) error) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		sf := rt.Field(i)
		fv := rv.Field(i)
		if !fv.CanSet() {
			continue
		}
		fieldPath := joinNonEmpty(".", path, sf.Name)
		envTag := sf.Tag.Get("env")

		if fv.Kind() == reflect.Struct && sf.Type != durationType {
			if err := walk(fv, joinNonEmpty("_", envPrefix, envTag), fieldPath, visit); err != nil {
				return err
			}
			continue
		}

		var envKey string
		if envTag != "" {
			envKey = joinNonEmpty("_", envPrefix, envTag)
		}
		if err := visit(field{value: fv, tag: sf.Tag, path: fieldPath, envKey: envKey}); err != nil {
			return err
		}
	}
	return nil
}

func joinNonEmpty(sep, a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + sep + b
	}
}

// setField parses value into f. Supported kinds are string (including named
// string types such as secrets), bool, signed integers, time.Duration and
// comma-separated string slices.
func setField(f reflect.Value, value string) error {
	if f.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		f.SetInt(int64(d))
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, f.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		f.SetInt(n)
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", f.Type().Elem().Kind())
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		slice := reflect.MakeSlice(f.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(p)
		}
		f.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", f.Kind())
	}
	return nil
}
