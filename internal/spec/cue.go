package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadDir loads the CUE package in dir into a new Registry.
func LoadDir(dir string) (*Registry, error) {
	ctx := cuecontext.New()
	insts := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(insts) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	if insts[0].Err != nil {
		return nil, fmt.Errorf("loading CUE package %s: %w", dir, insts[0].Err)
	}
	val := ctx.BuildInstance(insts[0])
	return registryFromValue(val)
}

// LoadFile loads a single .cue or .json file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(data)
	case ".cue":
		return LoadCUE(filepath.Base(path), data)
	default:
		return nil, fmt.Errorf("unsupported spec file type %q", filepath.Ext(path))
	}
}

// LoadCUE compiles CUE source into a new Registry.
func LoadCUE(filename string, src []byte) (*Registry, error) {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(src, cue.Filename(filename))
	return registryFromValue(val)
}

// LoadJSON decodes a JSON bundle into a new Registry.
func LoadJSON(data []byte) (*Registry, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding spec bundle: %w", err)
	}
	r := NewRegistry()
	if err := r.Load(b); err != nil {
		return nil, err
	}
	return r, nil
}

// registryFromValue validates a CUE value and loads it through its JSON
// form so that option values decode the same way as JSON bundles.
func registryFromValue(val cue.Value) (*Registry, error) {
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compiling CUE: %w", err)
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating CUE: %w", err)
	}
	data, err := val.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("exporting CUE: %w", err)
	}
	return LoadJSON(data)
}
