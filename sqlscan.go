package geopackage

import "strings"

type tokenKind int

const (
	tokenWord   tokenKind = iota // bare word or number
	tokenIdent                   // "quoted", `quoted` or [quoted] identifier
	tokenString                  // 'string literal'
	tokenGroup                   // balanced (...) group
	tokenPunct                   // any other single character
)

type sqlToken struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

// is reports whether the token is the keyword word.
func (t sqlToken) is(word string) bool {
	return t.kind == tokenWord && strings.EqualFold(t.text, word)
}

// name returns the identifier the token spells, without delimiters.
func (t sqlToken) name() string {
	switch t.kind {
	case tokenIdent, tokenString:
		return QuoteUnwrap(strings.ReplaceAll(t.text, "''", "'"))
	}
	return t.text
}

// tokenize splits s into top-level tokens. Parenthesised groups are single
// tokens; comments are skipped.
func tokenize(s string) []sqlToken {
	var tokens []sqlToken
	for i := 0; ; {
		tok, ok := nextToken(s, i)
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
		i = tok.end
	}
}

func nextToken(s string, i int) (sqlToken, bool) {
	i = skipSpace(s, i)
	if i >= len(s) {
		return sqlToken{}, false
	}
	start := i
	var kind tokenKind
	var end int
	switch c := s[i]; {
	case c == '\'':
		kind, end = tokenString, skipQuoted(s, i)
	case c == '"' || c == '`' || c == '[':
		kind, end = tokenIdent, skipQuoted(s, i)
	case c == '(':
		kind, end = tokenGroup, skipGroup(s, i)
	case isWordChar(c):
		kind, end = tokenWord, i
		for end < len(s) && isWordChar(s[end]) {
			end++
		}
	default:
		kind, end = tokenPunct, i+1
	}
	return sqlToken{kind: kind, text: s[start:end], start: start, end: end}, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isCommentStart(s string, i int) bool {
	return strings.HasPrefix(s[i:], "--") || strings.HasPrefix(s[i:], "/*")
}

// skipSpace returns the index of the next character that is neither
// whitespace nor part of a comment.
func skipSpace(s string, i int) int {
	for i < len(s) {
		switch {
		case isSpace(s[i]):
			i++
		case isCommentStart(s, i):
			i = skipComment(s, i)
		default:
			return i
		}
	}
	return i
}

// skipComment returns the index just past the comment starting at s[i].
func skipComment(s string, i int) int {
	if strings.HasPrefix(s[i:], "--") {
		j := strings.IndexByte(s[i:], '\n')
		if j < 0 {
			return len(s)
		}
		return i + j + 1
	}
	j := strings.Index(s[i+2:], "*/")
	if j < 0 {
		return len(s)
	}
	return i + 2 + j + 2
}

// skipQuoted returns the index just past the quoted section starting at
// s[i]. Doubled quote characters are escapes.
func skipQuoted(s string, i int) int {
	closing := s[i]
	if closing == '[' {
		closing = ']'
	}
	for j := i + 1; j < len(s); j++ {
		if s[j] != closing {
			continue
		}
		if closing != ']' && j+1 < len(s) && s[j+1] == closing {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// skipGroup returns the index just past the parenthesised group starting at
// s[i].
func skipGroup(s string, i int) int {
	depth := 0
	for j := i; j < len(s); {
		c := s[j]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			j = skipQuoted(s, j)
			continue
		case isCommentStart(s, j):
			j = skipComment(s, j)
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
		j++
	}
	return len(s)
}

// splitTopLevel splits s on commas outside quotes and parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	start, depth := 0, 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			i = skipQuoted(s, i)
			continue
		case isCommentStart(s, i):
			i = skipComment(s, i)
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
		i++
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// stripComments replaces comments outside quotes with a single space.
func stripComments(s string) string {
	var b strings.Builder
	last := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			i = skipQuoted(s, i)
		case isCommentStart(s, i):
			b.WriteString(s[last:i])
			b.WriteByte(' ')
			i = skipComment(s, i)
			last = i
		default:
			i++
		}
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// SplitStatements splits an SQL script into statements on semicolons outside
// quotes and comments. Semicolons inside the BEGIN ... END body of a CREATE
// TRIGGER statement do not end the statement. Empty statements are skipped.
func SplitStatements(script string) []string {
	var stmts []string
	var lead []string
	start, depth := 0, 0
	trigger := false

	flush := func(end int) {
		if s := strings.TrimSpace(script[start:end]); strings.TrimSpace(stripComments(s)) != "" {
			stmts = append(stmts, s)
		}
	}

	for i := 0; i < len(script); {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			i = skipQuoted(script, i)
			continue
		case isCommentStart(script, i):
			i = skipComment(script, i)
			continue
		case isWordChar(c):
			j := i
			for j < len(script) && isWordChar(script[j]) {
				j++
			}
			word := strings.ToUpper(script[i:j])
			if len(lead) < 3 {
				lead = append(lead, word)
				trigger = isCreateTrigger(lead)
			}
			if trigger {
				switch word {
				case "BEGIN", "CASE":
					depth++
				case "END":
					depth--
				}
			}
			i = j
			continue
		case c == ';' && depth <= 0:
			flush(i)
			start = i + 1
			lead = lead[:0]
			trigger = false
			depth = 0
		}
		i++
	}
	flush(len(script))
	return stmts
}

// isCreateTrigger reports whether the leading words spell CREATE [TEMP] TRIGGER.
func isCreateTrigger(lead []string) bool {
	if len(lead) < 2 || lead[0] != "CREATE" {
		return false
	}
	if lead[1] == "TRIGGER" {
		return true
	}
	return len(lead) >= 3 && (lead[1] == "TEMP" || lead[1] == "TEMPORARY") && lead[2] == "TRIGGER"
}
