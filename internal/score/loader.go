package score

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const goDefinitionFuncName = "ScoreDefinition"

// Load reads a definition from a YAML file or a Go script.
func Load(path string) (Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Definition{}, fmt.Errorf("score: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Definition{}, fmt.Errorf("score: %s is a directory", path)
	}
	var def Definition
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Definition{}, fmt.Errorf("score: read %s: %w", path, err)
		}
		def, err = ParseDefinitionYAML(data)
		if err != nil {
			return Definition{}, fmt.Errorf("score: %s: %w", path, err)
		}
	case ".go":
		def, err = loadGoDefinition(path)
		if err != nil {
			return Definition{}, err
		}
	default:
		return Definition{}, fmt.Errorf("score: %s: unsupported definition type %q", path, ext)
	}
	def.Path = filepath.Clean(path)
	return def, nil
}

// loadGoDefinition evaluates a Go script and decodes what its
// ScoreDefinition function returns.
func loadGoDefinition(path string) (Definition, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("score: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return Definition{}, fmt.Errorf("score: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Definition{}, fmt.Errorf("score: %s: load stdlib: %w", path, err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return Definition{}, fmt.Errorf("score: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goDefinitionFuncName)
	if err != nil {
		return Definition{}, fmt.Errorf("score: %s must define %s() (map[string]any, error): %w", path, goDefinitionFuncName, err)
	}
	raw, err := invokeDefinitionFunc(fnValue)
	if err != nil {
		return Definition{}, fmt.Errorf("score: %s: %w", path, err)
	}
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return Definition{}, fmt.Errorf("score: %s: encode definition: %w", path, err)
	}
	def, err := ParseDefinitionYAML(payload)
	if err != nil {
		return Definition{}, fmt.Errorf("score: %s: %w", path, err)
	}
	return def, nil
}

func invokeDefinitionFunc(value reflect.Value) (map[string]any, error) {
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goDefinitionFuncName)
	}
	results := value.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return (map[string]any[, error])", goDefinitionFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", goDefinitionFuncName)
	}
	def, ok := results[0].Interface().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must return map[string]any, got %s", goDefinitionFuncName, results[0].Type())
	}
	return def, nil
}
