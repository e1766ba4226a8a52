package geopackage

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GeoPackage date and datetime text formats.
const (
	dateFormat     = "2006-01-02"
	dateTimeFormat = "2006-01-02T15:04:05.000Z"
)

// SQLExpression is a value written into the transfer statement verbatim, such
// as a column default taken from a table definition.
type SQLExpression string

// TransferSQL compiles a mapping into the INSERT ... SELECT statement that
// copies rows from the source table into the destination table.
func TransferSQL(m *TableMapping) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	cols := make([]string, 0, len(m.order))
	exprs := make([]string, 0, len(m.order))
	var filters []string
	for _, c := range m.Columns() {
		cols = append(cols, QuoteWrap(c.ToColumn))
		exprs = append(exprs, selectExpression(c))
		if c.HasWhereValue() {
			filters = append(filters, wherePredicate(c))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s",
		QuoteWrap(m.ToTable), strings.Join(cols, ", "), strings.Join(exprs, ", "), QuoteWrap(m.FromTable))

	var where []string
	if w := strings.TrimSpace(m.Where); w != "" {
		if len(filters) > 0 {
			w = "(" + w + ")"
		}
		where = append(where, w)
	}
	where = append(where, filters...)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	return b.String(), nil
}

// selectExpression returns the SELECT list entry producing c's value.
func selectExpression(c *MappedColumn) string {
	switch {
	case c.hasConstant:
		return FormatValue(c.constantValue, c.DataType)
	case c.hasDefault && c.FromColumn == "":
		return FormatValue(c.defaultValue, c.DataType)
	case c.hasDefault:
		return fmt.Sprintf("ifnull(%s, %s)", QuoteWrap(c.FromColumn), FormatValue(c.defaultValue, c.DataType))
	default:
		return QuoteWrap(c.FromColumn)
	}
}

func wherePredicate(c *MappedColumn) string {
	col := QuoteWrap(c.FromColumn)
	op := c.WhereOperator()
	if c.whereValue == nil {
		switch op {
		case "=", "==", "IS", "is":
			return col + " IS NULL"
		case "!=", "<>", "IS NOT", "is not":
			return col + " IS NOT NULL"
		}
	}
	return fmt.Sprintf("%s %s %s", col, op, FormatValue(c.whereValue, c.DataType))
}

// FormatValue renders v as an SQL literal for a column of type dt. Booleans
// become 1 or 0, text values are single-quoted unless already quoted, and
// everything else uses its natural SQL form.
func FormatValue(v any, dt DataType) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case SQLExpression:
		return string(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case string:
		return formatString(val, dt)
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(val)) + "'"
	case time.Time:
		switch dt {
		case DataTypeDate:
			return quoteString(val.UTC().Format(dateFormat))
		case DataTypeDateTime:
			return quoteString(val.UTC().Format(dateTimeFormat))
		}
		return quoteString(val.Format(time.RFC3339Nano))
	case float32:
		return formatNumber(strconv.FormatFloat(float64(val), 'g', -1, 32), dt)
	case float64:
		return formatNumber(strconv.FormatFloat(val, 'g', -1, 64), dt)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return formatNumber(fmt.Sprint(val), dt)
	case fmt.Stringer:
		return formatString(val.String(), dt)
	default:
		return formatString(fmt.Sprint(val), dt)
	}
}

func formatNumber(s string, dt DataType) string {
	if dt == DataTypeBoolean {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == 0 {
			return "0"
		}
		return "1"
	}
	return s
}

func formatString(s string, dt DataType) string {
	switch {
	case dt == DataTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1":
			return "1"
		case "false", "0":
			return "0"
		}
		return s
	case dt.IsText():
		// Dates may also be given as expressions, e.g. (CURRENT_TIMESTAMP).
		if isStringLiteral(s) || (dt != DataTypeText && isExpression(s)) {
			return s
		}
		return quoteString(s)
	case dt == DataTypeUnknown:
		if isStringLiteral(s) || isNumericLiteral(s) || strings.EqualFold(s, "NULL") {
			return s
		}
		return quoteString(s)
	default:
		return s
	}
}

// quoteString returns s as a single-quoted SQL string literal.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isStringLiteral(s string) bool {
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}

// isExpression reports whether a date default is an SQL expression such as
// CURRENT_TIMESTAMP or strftime(...) rather than a date string.
func isExpression(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	return strings.HasPrefix(upper, "CURRENT_") || strings.Contains(upper, "(")
}

func isNumericLiteral(s string) bool {
	if s == "" {
		return false
	}
	hasDot := false
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
	}
	if start >= len(s) {
		return false
	}
	for i := start; i < len(s); i++ {
		if s[i] == '.' {
			if hasDot {
				return false
			}
			hasDot = true
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
