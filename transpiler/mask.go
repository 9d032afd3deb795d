// Package transpiler converts stored-routine code between procedural SQL
// dialects: Oracle PL/SQL source, MySQL and PostgreSQL targets.
//
// Constructs are recognized by their lexical shape, not by a full grammar.
// To keep that honest, every pattern pass runs against a masked shadow of
// the source in which string-literal and comment contents are blanked out,
// so the words EXCEPTION, WHEN, GOTO and friends inside a literal or a
// comment can never trigger a rewrite.
package transpiler

import "regexp"

const maskByte = '\x01'

// maskLiterals returns a same-length copy of src where the contents of
// single-quoted string literals, -- line comments and /* */ block comments
// are replaced with a placeholder byte. Quote and comment delimiters stay
// visible so later passes can still see that a region is quoted or already
// commented out. Newlines are kept so multi-line patterns keep their
// anchors. A doubled '' inside a literal is handled by the scanner toggling
// twice, which is exactly the SQL escape semantics.
func maskLiterals(src string) string {
	out := []byte(src)
	const (
		stCode = iota
		stString
		stLineComment
		stBlockComment
	)
	state := stCode
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch state {
		case stCode:
			switch {
			case c == '\'':
				state = stString
			case c == '-' && i+1 < len(out) && out[i+1] == '-':
				state = stLineComment
				i++ // keep both marker bytes visible
			case c == '/' && i+1 < len(out) && out[i+1] == '*':
				state = stBlockComment
				i++
			}
		case stString:
			if c == '\'' {
				state = stCode
			} else if c != '\n' {
				out[i] = maskByte
			}
		case stLineComment:
			if c == '\n' {
				state = stCode
			} else {
				out[i] = maskByte
			}
		case stBlockComment:
			if c == '*' && i+1 < len(out) && out[i+1] == '/' {
				state = stCode
				i++
			} else if c != '\n' {
				out[i] = maskByte
			}
		}
	}
	return string(out)
}

// replaceShaped applies re against the masked shadow of src and splices the
// replacements into the real text. The replacement callback receives the
// submatch slices taken from the original, unmasked source; group i is
// groups[i], with groups[0] the whole match. A group that did not
// participate is the empty string.
func replaceShaped(src string, re *regexp.Regexp, repl func(groups []string) string) string {
	masked := maskLiterals(src)
	idx := re.FindAllStringSubmatchIndex(masked, -1)
	if idx == nil {
		return src
	}
	var out []byte
	last := 0
	for _, m := range idx {
		groups := make([]string, len(m)/2)
		for g := 0; g < len(m); g += 2 {
			if m[g] >= 0 {
				groups[g/2] = src[m[g]:m[g+1]]
			}
		}
		out = append(out, src[last:m[0]]...)
		out = append(out, repl(groups)...)
		last = m[1]
	}
	out = append(out, src[last:]...)
	return string(out)
}

// findShaped returns the first match of re against the masked shadow,
// resolved to submatch strings from the original source, or nil.
func findShaped(src string, re *regexp.Regexp) []string {
	masked := maskLiterals(src)
	m := re.FindStringSubmatchIndex(masked)
	if m == nil {
		return nil
	}
	groups := make([]string, len(m)/2)
	for g := 0; g < len(m); g += 2 {
		if m[g] >= 0 {
			groups[g/2] = src[m[g]:m[g+1]]
		}
	}
	return groups
}

// findShapedIndex is findShaped returning byte offsets instead of text.
func findShapedIndex(src string, re *regexp.Regexp) []int {
	return re.FindStringSubmatchIndex(maskLiterals(src))
}

// matchShaped reports whether re matches anywhere outside literals and
// comments.
func matchShaped(src string, re *regexp.Regexp) bool {
	return re.MatchString(maskLiterals(src))
}
