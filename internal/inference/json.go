package inference

import (
	"encoding/json"
	"strings"
)

// ExtractJSON finds the last valid JSON object in a completion. Models
// routinely wrap JSON in markdown code fences or surround it with prose;
// normalizers call this before unmarshalling. Returns "" when no valid
// object is present.
func ExtractJSON(s string) string {
	cleaned := stripMarkdownCodeFences(s)

	end := strings.LastIndex(cleaned, "}")
	if end == -1 {
		return ""
	}

	// Scan backwards to find the matching opening brace.
	balance := 0
	for i := end; i >= 0; i-- {
		switch cleaned[i] {
		case '}':
			balance++
		case '{':
			balance--
		}

		if balance == 0 && cleaned[i] == '{' {
			candidate := cleaned[i : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
			// A balanced pair that is not valid JSON means no valid
			// object ends at 'end'.
			return ""
		}
	}

	return ""
}

// stripMarkdownCodeFences removes markdown code fence wrapping from a
// string. Handles ```json, bare ```, and other language specifiers.
func stripMarkdownCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "```") {
		firstNewline := strings.Index(trimmed, "\n")
		if firstNewline != -1 {
			lastFence := strings.LastIndex(trimmed, "```")
			if lastFence > firstNewline {
				return strings.TrimSpace(trimmed[firstNewline+1 : lastFence])
			}
		}
	}

	return s
}
