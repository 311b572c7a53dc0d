package sqlbuilder

import (
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/semgate-labs/semgate/internal/errors"
)

// Validate checks a user-supplied SQL statement before it may reach an
// adapter. It rejects multi-statement input, anything that is not a
// plain SELECT (DDL and DML included), and comment tokens anywhere in
// the statement.
func Validate(sql string, d Dialect) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return errors.NewValidation("empty query")
	}

	if tok := findCommentToken(trimmed); tok != "" {
		return errors.NewValidation("comment token %q is not allowed in queries", tok)
	}

	norm := normalizeQuotes(trimmed, d)

	pieces, err := sqlparser.SplitStatementToPieces(norm)
	if err != nil {
		return errors.Wrap(errors.KindBuild, err, "statement did not tokenize")
	}
	if len(pieces) > 1 {
		return errors.NewValidation("multi-statement queries are not allowed")
	}

	stmt, err := sqlparser.Parse(norm)
	if err != nil {
		return errors.Wrap(errors.KindBuild, err, "statement did not parse in dialect %s", d)
	}

	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return nil
	default:
		return errors.NewValidation("only SELECT statements are allowed")
	}
}

// findCommentToken scans for --, /* or # outside string literals and
// quoted identifiers. Returns the offending token, or empty.
func findCommentToken(sql string) string {
	i := 0
	for i < len(sql) {
		switch sql[i] {
		case '\'':
			i = skipString(sql, i)
		case '"':
			i = skipQuoted(sql, i, '"')
		case '`':
			i = skipQuoted(sql, i, '`')
		case '[':
			i = skipQuoted(sql, i, ']')
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				return "--"
			}
			i++
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				return "/*"
			}
			i++
		case '#':
			return "#"
		default:
			i++
		}
	}
	return ""
}

// skipQuoted returns the index just past a quoted region starting at i
// and terminated by end.
func skipQuoted(sql string, i int, end byte) int {
	j := i + 1
	for j < len(sql) && sql[j] != end {
		j++
	}
	if j < len(sql) {
		return j + 1
	}
	return j
}
