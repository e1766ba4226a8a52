package geopackage

import (
	"context"
	"fmt"
	"strings"
)

// columnKeywords start a column constraint.
var columnKeywords = map[string]bool{
	"CONSTRAINT": true,
	"PRIMARY":    true,
	"NOT":        true,
	"NULL":       true,
	"UNIQUE":     true,
	"CHECK":      true,
	"DEFAULT":    true,
	"COLLATE":    true,
	"REFERENCES": true,
	"GENERATED":  true,
	"AS":         true,
}

// tableConstraintKeywords start a table constraint.
var tableConstraintKeywords = map[string]bool{
	"CONSTRAINT": true,
	"PRIMARY":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"FOREIGN":    true,
}

// ReadTable reads the stored CREATE TABLE statement of name and parses it.
func ReadTable(ctx context.Context, q Queryer, name string) (*Table, error) {
	createSQL, err := NewCatalog(q).TableSQL(ctx, name)
	if err != nil {
		return nil, err
	}
	t, err := ParseCreateTable(createSQL)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	t.Name = name
	return t, nil
}

// ParseCreateTable splits a CREATE TABLE statement into column definitions,
// table constraints and table options. It understands the statements SQLite
// stores in sqlite_master; CREATE TABLE ... AS SELECT is rejected.
func ParseCreateTable(createSQL string) (*Table, error) {
	s := stripComments(createSQL)
	tokens := tokenize(s)

	h, err := parseCreateHeader(tokens)
	if err != nil {
		return nil, err
	}
	if h.next >= len(tokens) || tokens[h.next].kind != tokenGroup {
		return nil, fmt.Errorf("%w: table %s has no column list", ErrDefinition, h.name)
	}
	group := tokens[h.next]
	body := group.text[1 : len(group.text)-1]

	t := &Table{Name: h.name}
	t.Options = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s[group.end:]), ";"))

	for _, def := range splitTopLevel(body) {
		if isTableConstraint(def) {
			t.Constraints = append(t.Constraints, def)
			continue
		}
		col, err := parseColumn(def)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", h.name, err)
		}
		t.Columns = append(t.Columns, col)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%w: table %s has no columns", ErrDefinition, h.name)
	}
	return t, nil
}

// renameCreateTable replaces the table name of a CREATE TABLE statement,
// including any schema qualifier, with the quoted name.
func renameCreateTable(createSQL, name string) (string, error) {
	h, err := parseCreateHeader(tokenize(createSQL))
	if err != nil {
		return "", err
	}
	return createSQL[:h.nameStart] + QuoteWrap(name) + createSQL[h.nameEnd:], nil
}

// createHeader locates the table name in "CREATE [TEMP] TABLE [IF NOT
// EXISTS] [schema.]name".
type createHeader struct {
	name      string
	nameStart int
	nameEnd   int
	next      int // index of the token after the name
}

func parseCreateHeader(tokens []sqlToken) (createHeader, error) {
	i := 0
	expect := func(word string) bool {
		if i < len(tokens) && tokens[i].is(word) {
			i++
			return true
		}
		return false
	}
	if !expect("CREATE") {
		return createHeader{}, fmt.Errorf("%w: not a CREATE TABLE statement", ErrDefinition)
	}
	_ = expect("TEMP") || expect("TEMPORARY")
	if !expect("TABLE") {
		return createHeader{}, fmt.Errorf("%w: not a CREATE TABLE statement", ErrDefinition)
	}
	if expect("IF") && !(expect("NOT") && expect("EXISTS")) {
		return createHeader{}, fmt.Errorf("%w: malformed IF NOT EXISTS", ErrDefinition)
	}
	if i >= len(tokens) || tokens[i].kind == tokenGroup || tokens[i].kind == tokenPunct {
		return createHeader{}, fmt.Errorf("%w: missing table name", ErrDefinition)
	}

	h := createHeader{name: tokens[i].name(), nameStart: tokens[i].start, nameEnd: tokens[i].end}
	i++
	if i+1 < len(tokens) && tokens[i].kind == tokenPunct && tokens[i].text == "." {
		h.name = tokens[i+1].name()
		h.nameEnd = tokens[i+1].end
		i += 2
	}
	h.next = i
	return h, nil
}

func isTableConstraint(def string) bool {
	tok, ok := nextToken(def, 0)
	return ok && tok.kind == tokenWord && tableConstraintKeywords[strings.ToUpper(tok.text)]
}

// parseColumn parses "name [type] [constraint...]".
func parseColumn(def string) (Column, error) {
	tokens := tokenize(def)
	if len(tokens) == 0 {
		return Column{}, fmt.Errorf("%w: empty column definition", ErrDefinition)
	}
	switch tokens[0].kind {
	case tokenWord, tokenIdent, tokenString:
	default:
		return Column{}, fmt.Errorf("%w: malformed column definition %q", ErrDefinition, def)
	}
	col := Column{Name: tokens[0].name()}

	j := 1
	typeStart, typeEnd := -1, -1
	for j < len(tokens) && isTypeToken(tokens[j], typeStart >= 0) {
		if typeStart < 0 {
			typeStart = tokens[j].start
		}
		typeEnd = tokens[j].end
		j++
	}
	if typeStart >= 0 {
		col.Type = def[typeStart:typeEnd]
	}

	clauses := splitColumnClauses(tokens[j:])
	for c := 0; c < len(clauses); c++ {
		cl := clauses[c]
		text := def[cl[0].start:cl[len(cl)-1].end]
		switch {
		case cl[0].is("CONSTRAINT"):
			// A named constraint is kept together with the constraint it names.
			if len(cl) <= 2 && c+1 < len(clauses) {
				next := clauses[c+1]
				text = def[cl[0].start:next[len(next)-1].end]
				c++
			}
			col.Constraints = append(col.Constraints, text)
		case matchWords(cl, "PRIMARY", "KEY"):
			col.PrimaryKey = true
		case matchWords(cl, "PRIMARY", "KEY", "AUTOINCREMENT"):
			col.PrimaryKey = true
			col.Autoincrement = true
		case matchWords(cl, "NOT", "NULL"):
			col.NotNull = true
		case matchWords(cl, "NULL"):
		case matchWords(cl, "UNIQUE"):
			col.Unique = true
		case cl[0].is("DEFAULT") && len(cl) > 1:
			d := def[cl[1].start:cl[len(cl)-1].end]
			col.Default = &d
		default:
			col.Constraints = append(col.Constraints, text)
		}
	}
	return col, nil
}

// isTypeToken reports whether tok continues the declared type. A
// parenthesised group only belongs to the type after a type name.
func isTypeToken(tok sqlToken, inType bool) bool {
	switch tok.kind {
	case tokenWord:
		return !columnKeywords[strings.ToUpper(tok.text)]
	case tokenGroup:
		return inType
	}
	return false
}

// splitColumnClauses groups the constraint tokens of a column definition,
// starting a new group at each constraint keyword.
func splitColumnClauses(tokens []sqlToken) [][]sqlToken {
	var clauses [][]sqlToken
	for k, tok := range tokens {
		if len(clauses) == 0 || startsClause(tokens, k, clauses[len(clauses)-1]) {
			clauses = append(clauses, []sqlToken{tok})
			continue
		}
		clauses[len(clauses)-1] = append(clauses[len(clauses)-1], tok)
	}
	return clauses
}

func startsClause(tokens []sqlToken, k int, current []sqlToken) bool {
	tok := tokens[k]
	if tok.kind != tokenWord || !columnKeywords[strings.ToUpper(tok.text)] {
		return false
	}
	prev := tokens[k-1]
	switch {
	case prev.is("SET"), prev.is("DEFAULT"), prev.is("CONSTRAINT"):
		// ON DELETE SET NULL, DEFAULT NULL, CONSTRAINT <keyword-like name>
		return false
	case tok.is("NULL") && prev.is("NOT"):
		return false
	case tok.is("NOT") && k+1 < len(tokens) && tokens[k+1].is("DEFERRABLE"):
		return false
	case tok.is("AS") && current[0].is("GENERATED"):
		return false
	}
	return true
}

// matchWords reports whether the clause consists of exactly the given words.
func matchWords(clause []sqlToken, words ...string) bool {
	if len(clause) != len(words) {
		return false
	}
	for i, w := range words {
		if !clause[i].is(w) {
			return false
		}
	}
	return true
}
