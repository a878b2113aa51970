// Package configs loads typed configuration from layered YAML files plus
// command-line overrides.
//
// Sources are merged in order, later ones winning: the YAML files in the
// order given, then overrides of the form "dotted.path=value" last. The
// merged document is decoded strictly into the caller's struct -- unknown
// fields are errors -- so typos in files or overrides fail loudly instead of
// being silently dropped.
//
// The resulting struct should be treated as read-only by its consumers.
package configs

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads and merges the YAML files in paths, in order, applies the
// overrides last and decodes the result into out, which must be a pointer to
// a struct (or map) with yaml tags.
//
// Each override must have the form "key=value" where key may be a dotted path
// into nested maps ("model.readout.num_heads=8"). Values are parsed as YAML,
// so "8" is an int, "true" a bool, "[1, 2]" a list and anything else a
// string.
//
// Fields not mentioned by any source keep whatever value out already had, so
// defaults can be set by pre-filling out.
func Load(out any, paths []string, overrides []string) error {
	merged := make(map[string]any)
	for _, path := range paths {
		contents, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read config file %q", path)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(contents, &doc); err != nil {
			return errors.Wrapf(err, "failed to parse config file %q", path)
		}
		mergeInto(merged, doc)
	}
	for _, override := range overrides {
		key, valueStr, found := strings.Cut(override, "=")
		if !found || key == "" {
			return errors.Errorf("invalid override %q: it must have the form \"key=value\"", override)
		}
		var value any
		if err := yaml.Unmarshal([]byte(valueStr), &value); err != nil {
			return errors.Wrapf(err, "failed to parse value %q of override %q", valueStr, override)
		}
		if err := setPath(merged, strings.Split(key, "."), value); err != nil {
			return errors.Wrapf(err, "failed to apply override %q", override)
		}
	}
	return decodeStrict(merged, out)
}

// mergeInto merges src into dst: maps are merged recursively, any other value
// (including lists) replaces the previous one.
func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		if srcMap, ok := value.(map[string]any); ok {
			if dstMap, ok := dst[key].(map[string]any); ok {
				mergeInto(dstMap, srcMap)
				continue
			}
		}
		dst[key] = value
	}
}

// setPath sets value at the given dotted path in doc, creating intermediate
// maps as needed. It fails if an intermediate element exists but is not a
// map.
func setPath(doc map[string]any, path []string, value any) error {
	for ii, element := range path[:len(path)-1] {
		next, found := doc[element]
		if !found {
			nextMap := make(map[string]any)
			doc[element] = nextMap
			doc = nextMap
			continue
		}
		nextMap, ok := next.(map[string]any)
		if !ok {
			return errors.Errorf("%q is a %T, not a section", strings.Join(path[:ii+1], "."), next)
		}
		doc = nextMap
	}
	doc[path[len(path)-1]] = value
	return nil
}

// decodeStrict decodes the merged document into out, failing on fields out
// doesn't know about.
func decodeStrict(doc map[string]any, out any) error {
	contents, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to re-encode merged configuration")
	}
	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode merged configuration")
	}
	return nil
}

// ParseArgs is an argv convenience around Load: it collects repeated
// "--config=path" (or "--config path", single dash also accepted) flags in
// order, treats every other "key=value" argument as an override, loads them
// all into out and returns the remaining arguments.
func ParseArgs(out any, args []string) (rest []string, err error) {
	var paths, overrides []string
	for ii := 0; ii < len(args); ii++ {
		arg := args[ii]
		switch {
		case arg == "--config" || arg == "-config":
			ii++
			if ii >= len(args) {
				return nil, errors.Errorf("flag %q is missing its file path value", arg)
			}
			paths = append(paths, args[ii])
		case strings.HasPrefix(arg, "--config="):
			paths = append(paths, strings.TrimPrefix(arg, "--config="))
		case strings.HasPrefix(arg, "-config="):
			paths = append(paths, strings.TrimPrefix(arg, "-config="))
		case !strings.HasPrefix(arg, "-") && strings.Contains(arg, "="):
			overrides = append(overrides, arg)
		default:
			rest = append(rest, arg)
		}
	}
	return rest, Load(out, paths, overrides)
}

// Files collects the values of a repeated "-config" flag, in order. It
// implements flag.Value:
//
//	var configFiles configs.Files
//	flag.Var(&configFiles, "config", "YAML config file; may be repeated, later files override earlier ones.")
type Files []string

// String implements flag.Value.
func (f *Files) String() string { return strings.Join(*f, ",") }

// Set implements flag.Value, appending one more file path.
func (f *Files) Set(value string) error {
	*f = append(*f, value)
	return nil
}
