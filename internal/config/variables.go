package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/drone/envsubst/v2"
	"gopkg.in/yaml.v3"

	"github.com/imamik/converge/internal/expr"
)

// EnvVarPrefix prefixes environment variables that set stack variables.
const EnvVarPrefix = "CONVERGE_VAR_"

// autoVarPatterns are loaded automatically from the stack directory.
var autoVarPatterns = []string{"*.auto.vars.yaml", "*.auto.vars.yml", "*.auto.vars.json", "*.auto.vars.toml"}

// VarInputs collects the variable sources given on the command line.
type VarInputs struct {
	// Files are -var-file paths, applied in order.
	Files []string
	// Flags are -var name=value assignments, applied in order.
	Flags []string
	// Environ is consulted for CONVERGE_VAR_<name>; usually os.Environ().
	Environ []string
	// AutoDir is scanned for *.auto.vars.* files. Empty disables the scan.
	AutoDir string
}

// ResolveVariables computes the final variable values. Later sources win:
// defaults, environment, auto var files, -var-file, -var.
func ResolveVariables(s *Stack, in VarInputs) (map[string]any, error) {
	values := make(map[string]any, len(s.Variables))
	for name, v := range s.Variables {
		if v.HasDefault {
			val, err := convertValue(v, v.Default)
			if err != nil {
				return nil, fmt.Errorf("%s: variable %q default: %w", v.Pos, name, err)
			}
			values[name] = val
		}
	}

	var errs []error
	for _, kv := range in.Environ {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvVarPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, EnvVarPrefix)
		v, declared := s.Variables[name]
		if !declared {
			continue
		}
		val, err := convertString(v, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("environment variable %s: %w", key, err))
			continue
		}
		values[name] = val
	}

	files, err := autoVarFiles(in.AutoDir)
	if err != nil {
		return nil, err
	}
	files = append(files, in.Files...)
	for _, path := range files {
		fileVals, err := ReadVarFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, name := range expr.SortedKeys(fileVals) {
			v, declared := s.Variables[name]
			if !declared {
				errs = append(errs, fmt.Errorf("%s: undeclared variable %q", path, name))
				continue
			}
			val, err := convertValue(v, fileVals[name])
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: variable %q: %w", path, name, err))
				continue
			}
			values[name] = val
		}
	}

	for _, flag := range in.Flags {
		name, raw, ok := strings.Cut(flag, "=")
		if !ok || name == "" {
			errs = append(errs, fmt.Errorf("invalid -var %q: expected name=value", flag))
			continue
		}
		v, declared := s.Variables[name]
		if !declared {
			errs = append(errs, fmt.Errorf("-var: undeclared variable %q", name))
			continue
		}
		val, err := convertString(v, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("-var %s: %w", name, err))
			continue
		}
		values[name] = val
	}

	for _, name := range expr.SortedKeys(s.Variables) {
		v := s.Variables[name]
		val, set := values[name]
		switch {
		case !set:
			errs = append(errs, fmt.Errorf("%s: no value for required variable %q", v.Pos, name))
		case val == nil && !v.Nullable:
			errs = append(errs, fmt.Errorf("%s: variable %q must not be null", v.Pos, name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return values, nil
}

// ReadVarFile decodes a YAML, JSON or TOML variable file after expanding
// environment references such as ${HOME}.
func ReadVarFile(path string) (map[string]any, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read var file: %w", err)
	}
	expanded, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to expand environment: %w", path, err)
	}

	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, &out); err != nil {
			return nil, fmt.Errorf("%s: failed to decode toml: %w", path, err)
		}
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal([]byte(expanded), &out); err != nil {
			return nil, fmt.Errorf("%s: failed to decode: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported var file extension (want .yaml, .yml, .json or .toml)", path)
	}
	return normalizeMap(out), nil
}

func autoVarFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	var files []string
	for _, pattern := range autoVarPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// convertString converts a string from the environment or a flag into the
// declared type of v.
func convertString(v *Variable, raw string) (any, error) {
	switch v.Type {
	case TypeString, TypeAny:
		return raw, nil
	case TypeList, TypeMap:
		var parsed any
		if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, fmt.Errorf("cannot parse %q as %s: %w", raw, v.Type, err)
		}
		return convertValue(v, expr.Normalize(parsed))
	default:
		return convertValue(v, raw)
	}
}

// convertValue checks val against the declared type of v, converting
// primitives where the conversion is lossless.
func convertValue(v *Variable, val any) (any, error) {
	if val == nil {
		return nil, nil
	}
	switch v.Type {
	case TypeAny, "":
		return val, nil
	case TypeString:
		switch t := val.(type) {
		case string:
			return t, nil
		case float64, bool:
			return expr.Stringify(t)
		}
	case TypeNumber:
		switch t := val.(type) {
		case float64:
			return t, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to number", t)
			}
			return f, nil
		}
	case TypeBool:
		switch t := val.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to bool", t)
			}
			return b, nil
		}
	case TypeList:
		if l, ok := val.([]any); ok {
			return l, nil
		}
	case TypeMap:
		if m, ok := val.(map[string]any); ok {
			return m, nil
		}
	default:
		return nil, fmt.Errorf("unknown variable type %q", v.Type)
	}
	return nil, fmt.Errorf("expected %s, got %s", v.Type, expr.TypeName(val))
}
