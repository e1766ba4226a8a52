package geopackage

import "strings"

// ReplaceName replaces every free-standing occurrence of name in sql with
// replacement. An occurrence is free-standing when the characters on both
// sides of it are not identifier characters (letters, digits, underscore) or
// it touches the start or end of sql. Occurrences that are part of a longer
// identifier are kept verbatim.
//
// The boolean result is false, and the string empty, when nothing was replaced.
func ReplaceName(sql, name, replacement string) (string, bool) {
	return replaceName(sql, name, replacement, 0)
}

// ContainsName reports whether name occurs free-standing in sql.
func ContainsName(sql, name string) bool {
	_, ok := replaceName(sql, name, name, 1)
	return ok
}

func replaceName(sql, name, replacement string, limit int) (string, bool) {
	if name == "" || sql == "" {
		return "", false
	}

	var b strings.Builder
	replaced := 0
	pos := 0
	for {
		i := strings.Index(sql[pos:], name)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(name)
		if (limit <= 0 || replaced < limit) && boundaryBefore(sql, start) && boundaryAfter(sql, end) {
			if replaced == 0 {
				b.Grow(len(sql) + len(replacement))
			}
			b.WriteString(sql[pos:start])
			b.WriteString(replacement)
			replaced++
		} else {
			b.WriteString(sql[pos:end])
		}
		pos = end
	}
	if replaced == 0 {
		return "", false
	}
	b.WriteString(sql[pos:])
	return b.String(), true
}

// boundaryBefore reports whether the character before sql[i] ends a token.
func boundaryBefore(sql string, i int) bool {
	return i == 0 || !isWordChar(sql[i-1])
}

// boundaryAfter reports whether the character at sql[i] starts a new token.
func boundaryAfter(sql string, i int) bool {
	return i >= len(sql) || !isWordChar(sql[i])
}
