package ai

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject returns the first well-formed JSON object embedded in
// text. Braces inside string literals are ignored, so prose around the
// object and nested objects are both handled.
func ExtractJSONObject(text string) (string, bool) {
	// ends maps the offset of an opening brace to its closing brace, or -1
	// when the text ends first. One scan resolves every brace it opens.
	ends := make(map[int]int)
	offset := 0
	for {
		start := strings.IndexByte(text[offset:], '{')
		if start < 0 {
			return "", false
		}
		start += offset
		end, seen := ends[start]
		if !seen {
			scanObject(text, start, ends)
			end = ends[start]
		}
		if end >= 0 {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		offset = start + 1
	}
}

// scanObject walks from the opening brace at start until it is closed,
// recording in ends the closing brace of every brace opened along the way.
// Braces still open when the text runs out are recorded as -1.
func scanObject(text string, start int, ends map[int]int) {
	var open []int
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			open = append(open, i)
		case '}':
			last := open[len(open)-1]
			open = open[:len(open)-1]
			ends[last] = i
			if len(open) == 0 {
				return
			}
		}
	}
	for _, pos := range open {
		ends[pos] = -1
	}
}
