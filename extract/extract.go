// Package extract pulls structured JSON objects out of free-text completion
// provider responses. Providers are not guaranteed to emit strict JSON, so
// extraction runs an ordered list of strategies and fails deterministically
// when none applies.
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoObject is returned when no strategy produced a structured object.
var ErrNoObject = errors.New("no structured object found in response")

var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseObject extracts a JSON object from the text. Strategies, in order:
// fenced code blocks, any balanced {...} in the text, and finally labeled
// key/value line scraping ("field: value", "**Field:** value").
func ParseObject(text string) (map[string]any, error) {
	if obj, ok := parseJSONStrategies(text, ""); ok {
		return obj, nil
	}
	if pairs := scrapeLabeledLines(text); len(pairs) > 0 {
		return pairs, nil
	}
	return nil, ErrNoObject
}

// ParseObjectWithKey extracts a JSON object that contains the given top-level
// key. Only the JSON strategies apply: line scraping cannot produce nested
// structures like a steps array.
func ParseObjectWithKey(text, key string) (map[string]any, error) {
	if obj, ok := parseJSONStrategies(text, key); ok {
		return obj, nil
	}
	return nil, ErrNoObject
}

func parseJSONStrategies(text, requiredKey string) (map[string]any, bool) {
	for _, block := range fencedBlocks(text) {
		if obj, ok := tryParse(block, requiredKey); ok {
			return obj, true
		}
	}
	for _, candidate := range balancedObjects(text) {
		if obj, ok := tryParse(candidate, requiredKey); ok {
			return obj, true
		}
	}
	return nil, false
}

func tryParse(candidate, requiredKey string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(sanitize(candidate)), &obj); err != nil {
		return nil, false
	}
	if requiredKey != "" {
		if _, ok := obj[requiredKey]; !ok {
			return nil, false
		}
	}
	return obj, true
}

func fencedBlocks(text string) []string {
	var blocks []string
	for _, match := range fencedRe.FindAllStringSubmatch(text, -1) {
		block := strings.TrimSpace(match[1])
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// balancedObjects returns every top-level balanced {...} region in the text,
// in order of appearance. The scan is string-aware so braces inside JSON
// strings do not confuse it.
func balancedObjects(text string) []string {
	var objects []string
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					objects = append(objects, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return objects
}

// sanitize strips comment tokens and trailing commas so that almost-JSON
// emitted by providers still parses.
func sanitize(text string) string {
	var out strings.Builder
	inString := false
	escaped := false
	i := 0
	for i < len(text) {
		c := text[i]
		if escaped {
			out.WriteByte(c)
			escaped = false
			i++
			continue
		}
		if inString {
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			out.WriteByte(c)
			i++
			continue
		}
		switch {
		case c == '"':
			inString = true
			out.WriteByte(c)
			i++
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			i += 2
			for i+1 < len(text) && !(text[i] == '*' && text[i+1] == '/') {
				i++
			}
			i += 2
		case c == ',':
			// Drop the comma if the next non-whitespace byte closes a
			// container.
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				i++
				continue
			}
			out.WriteByte(c)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

var labeledLineRe = regexp.MustCompile(`^\s*(?:[-*]\s+)?(?:\*\*)?([A-Za-z][A-Za-z0-9 _]*?)(?:\*\*)?\s*:\s*(.+?)\s*$`)

// scrapeLabeledLines collects "field: value" and "**Field:** value" pairs.
// Keys are lowercased with spaces collapsed to underscores.
func scrapeLabeledLines(text string) map[string]any {
	pairs := map[string]any{}
	for _, line := range strings.Split(text, "\n") {
		match := labeledLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		value := strings.TrimSpace(match[2])
		if value == "" || strings.HasPrefix(value, "//") {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(match[1]))
		key = strings.ReplaceAll(key, " ", "_")
		if _, exists := pairs[key]; !exists {
			pairs[key] = value
		}
	}
	return pairs
}
