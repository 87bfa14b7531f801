package config

import "strings"

// parseKeyVal implements the six-rule grammar of original_source/keyval.c
// for one line of the config file: "=" delimits key from value(s), "#"
// begins a comment, "\" escapes the next character, "," and ";" delimit a
// list, escaped delimiters/comments do not act as such, and whitespace is
// trimmed from (but not meaningful within) each token.
//
// No library in the retrieval pack implements this exact grammar — see
// DESIGN.md for why it is hand-rolled rather than reached for a
// third-party parser.
func parseKeyVal(line string) (key string, values []string, ok bool) {
	stripped := removeComment(line)
	if strings.TrimSpace(stripped) == "" {
		return "", nil, false
	}

	eq := findUnescaped(stripped, '=')
	if eq < 0 {
		return "", nil, false
	}

	key = unescapeAndTrim(stripped[:eq])
	if key == "" {
		return "", nil, false
	}

	rawValues := splitUnescaped(stripped[eq+1:], ",;")
	for _, v := range rawValues {
		trimmed := unescapeAndTrim(v)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return key, values, true
}

// removeComment returns line with everything from the first unescaped '#'
// onward discarded.
func removeComment(line string) string {
	var b strings.Builder
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
		case c == '#' && !escaped:
			return b.String()
		default:
			escaped = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

// findUnescaped returns the index of the first unescaped occurrence of c,
// or -1.
func findUnescaped(s string, c byte) int {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && !escaped:
			escaped = true
		case s[i] == c && !escaped:
			return i
		default:
			escaped = false
		}
	}
	return -1
}

// splitUnescaped splits s on any unescaped byte in delims.
func splitUnescaped(s string, delims string) []string {
	var parts []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && !escaped:
			escaped = true
			cur.WriteByte(c)
		case strings.IndexByte(delims, c) >= 0 && !escaped:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			escaped = false
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

// unescapeAndTrim trims leading/trailing whitespace then removes the
// escaping backslash from every escaped character.
func unescapeAndTrim(s string) string {
	trimmed := strings.TrimSpace(s)
	var b strings.Builder
	escaped := false
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteByte(c)
	}
	return b.String()
}
