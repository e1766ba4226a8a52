package geopackage

import "strings"

// QuoteWrap wraps an identifier in double quotes, doubling embedded quotes.
// Already wrapped identifiers are returned unchanged, so QuoteWrap is idempotent.
func QuoteWrap(name string) string {
	if isQuoteWrapped(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteUnwrap strips identifier delimiters ("name", `name` or [name]) and
// undoes quote doubling. Bare identifiers are returned unchanged.
func QuoteUnwrap(name string) string {
	if len(name) < 2 {
		return name
	}
	first, last := name[0], name[len(name)-1]
	switch {
	case first == '"' && last == '"':
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	case first == '`' && last == '`':
		return strings.ReplaceAll(name[1:len(name)-1], "``", "`")
	case first == '[' && last == ']':
		return name[1 : len(name)-1]
	}
	return name
}

// QuoteWrapAll quotes every name in names.
func QuoteWrapAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteWrap(n)
	}
	return quoted
}

// quotedColumnList joins column names with proper quoting.
func quotedColumnList(cols []string) string {
	return strings.Join(QuoteWrapAll(cols), ", ")
}

func isQuoteWrapped(name string) bool {
	return len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"'
}

// isWordChar reports whether c can be part of a bare identifier. Bytes of
// multi-byte UTF-8 sequences count as word characters, as SQLite accepts them
// in identifiers, so a name is never split inside a non-ASCII letter.
func isWordChar(c byte) bool {
	return c == '_' ||
		c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c >= 0x80
}
