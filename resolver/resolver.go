// Package resolver substitutes {{path}} placeholders in step parameters with
// values from the accumulated execution context. Paths are dot/bracket
// separated, e.g. "step_3.result.company_name" or "step_2.result.items[0]".
//
// A path that cannot be resolved is left in place unchanged, never replaced
// with an empty value: downstream code detects leftovers with Unresolved and
// fails fast instead of invoking a tool with garbage.
package resolver

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Resolve walks the value recursively, substituting placeholders in strings.
// Maps and slices are rebuilt; all other values pass through unchanged.
//
// A string that consists of exactly one placeholder resolves to the context
// value itself, preserving its type. Placeholders embedded in longer strings
// substitute as the value's string form (JSON-serialized for non-scalars).
func Resolve(value any, context map[string]any) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, context)
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for key, item := range v {
			resolved[key] = Resolve(item, context)
		}
		return resolved
	case []any:
		resolved := make([]any, len(v))
		for i, item := range v {
			resolved[i] = Resolve(item, context)
		}
		return resolved
	default:
		return value
	}
}

func resolveString(s string, context map[string]any) any {
	// Whole-value placeholder: substitute the typed value as-is.
	if match := placeholderRe.FindStringSubmatch(s); match != nil && match[0] == s {
		if resolved, ok := lookup(match[1], context); ok {
			return resolved
		}
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(placeholder string) string {
		path := placeholderRe.FindStringSubmatch(placeholder)[1]
		resolved, ok := lookup(path, context)
		if !ok {
			return placeholder
		}
		return stringify(resolved)
	})
}

// lookup resolves a path against the context, one segment at a time. A path
// may contain |-separated fallback candidates; the first one that resolves
// wins.
func lookup(path string, context map[string]any) (any, bool) {
	for _, candidate := range strings.Split(path, "|") {
		if value, ok := lookupOne(strings.TrimSpace(candidate), context); ok {
			return value, true
		}
	}
	return nil, false
}

func lookupOne(path string, context map[string]any) (any, bool) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	var current any = context
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// splitPath turns "step_2.result.items[0].name" into
// ["step_2", "result", "items", "0", "name"].
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	var segments []string
	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part != "" {
					segments = append(segments, part)
				}
				break
			}
			closing := strings.IndexByte(part, ']')
			if closing < open {
				return nil, fmt.Errorf("unbalanced brackets in path %q", path)
			}
			if open > 0 {
				segments = append(segments, part[:open])
			}
			segments = append(segments, part[open+1:closing])
			part = part[closing+1:]
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	return segments, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool, int, int64, float64, json.Number:
		return fmt.Sprintf("%v", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Unresolved returns the distinct placeholder expressions remaining anywhere
// in the value, sorted. An empty result means resolution is complete.
func Unresolved(value any) []string {
	found := map[string]struct{}{}
	collectUnresolved(value, found)
	if len(found) == 0 {
		return nil
	}
	refs := make([]string, 0, len(found))
	for ref := range found {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func collectUnresolved(value any, found map[string]struct{}) {
	switch v := value.(type) {
	case string:
		for _, match := range placeholderRe.FindAllString(v, -1) {
			found[match] = struct{}{}
		}
	case map[string]any:
		for _, item := range v {
			collectUnresolved(item, found)
		}
	case []any:
		for _, item := range v {
			collectUnresolved(item, found)
		}
	}
}
