package sqlbuilder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/pkg/models"
)

// ApplyRLS parses a SQL statement in the read dialect, combines any
// existing WHERE clause with the given predicate under AND, and re-emits
// the statement in the write dialect. The returned parameter vector
// interleaves the original params and the predicate params in final
// placeholder order.
//
// A parse failure is a BuildError; the predicate is never silently
// dropped.
func ApplyRLS(sql string, params []interface{}, rls *models.Filter, read, write Dialect) (string, []interface{}, error) {
	if rls == nil {
		return sql, params, nil
	}

	stmt, err := parseSelect(sql, read)
	if err != nil {
		return "", nil, err
	}

	// Render the predicate with backtick quoting so it parses under the
	// same grammar, using named args that cannot collide with the
	// statement's own placeholders.
	var rlsParams []interface{}
	predSQL, err := RenderFilter(rls, DialectMySQL, &rlsParams)
	if err != nil {
		return "", nil, err
	}
	for i := 1; strings.Contains(predSQL, "?"); i++ {
		predSQL = strings.Replace(predSQL, "?", fmt.Sprintf(":rls%d", i), 1)
	}

	predStmt, err := sqlparser.Parse("select 1 from t where " + predSQL)
	if err != nil {
		return "", nil, errors.Wrap(errors.KindBuild, err, "rls predicate did not parse")
	}
	predExpr := predStmt.(*sqlparser.Select).Where.Expr

	if stmt.Where == nil {
		stmt.Where = sqlparser.NewWhere(sqlparser.WhereStr, predExpr)
	} else {
		stmt.Where.Expr = &sqlparser.AndExpr{
			Left:  &sqlparser.ParenExpr{Expr: stmt.Where.Expr},
			Right: predExpr,
		}
	}

	out := sqlparser.String(stmt)
	return restorePlaceholders(out, params, rlsParams, write)
}

// Transpile parses a statement in the read dialect and re-emits it in
// the write dialect, preserving placeholder positions.
func Transpile(sql string, params []interface{}, read, write Dialect) (string, []interface{}, error) {
	stmt, err := parseSelect(sql, read)
	if err != nil {
		return "", nil, err
	}
	return restorePlaceholders(sqlparser.String(stmt), params, nil, write)
}

// parseSelect normalizes identifier quoting and parses a single SELECT.
func parseSelect(sql string, read Dialect) (*sqlparser.Select, error) {
	norm := normalizeQuotes(sql, read)
	stmt, err := sqlparser.Parse(norm)
	if err != nil {
		return nil, errors.Wrap(errors.KindBuild, err, "statement did not parse in dialect %s", read)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, errors.NewBuild("only SELECT statements are supported, got %T", stmt)
	}
	return sel, nil
}

// restorePlaceholders converts the parser's named bind variables back to
// canonical `?` placeholders and rebuilds the parameter vector in final
// textual order. `:vN` names map to the original params, `:rlsN` names to
// the injected predicate params.
func restorePlaceholders(sql string, orig, rls []interface{}, write Dialect) (string, []interface{}, error) {
	var sb strings.Builder
	var out []interface{}

	i := 0
	for i < len(sql) {
		c := sql[i]

		// Skip string literals untouched.
		if c == '\'' {
			j := i + 1
			for j < len(sql) {
				if sql[j] == '\'' {
					if j+1 < len(sql) && sql[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j >= len(sql) {
				return "", nil, errors.NewBuild("unterminated string literal")
			}
			sb.WriteString(sql[i : j+1])
			i = j + 1
			continue
		}

		if c == ':' {
			rest := sql[i+1:]
			if n, width, ok := matchBindName(rest, "v"); ok {
				if n < 1 || n > len(orig) {
					return "", nil, errors.NewBuild("placeholder :v%d out of range", n)
				}
				out = append(out, orig[n-1])
				sb.WriteByte('?')
				i += 1 + width
				continue
			}
			if n, width, ok := matchBindName(rest, "rls"); ok {
				if n < 1 || n > len(rls) {
					return "", nil, errors.NewBuild("placeholder :rls%d out of range", n)
				}
				out = append(out, rls[n-1])
				sb.WriteByte('?')
				i += 1 + width
				continue
			}
		}

		sb.WriteByte(c)
		i++
	}

	return denormalizeQuotes(sb.String(), write), out, nil
}

// matchBindName matches prefix+digits at the start of s and returns the
// parsed number and consumed width.
func matchBindName(s, prefix string) (int, int, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, 0, false
	}
	j := len(prefix)
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == len(prefix) {
		return 0, 0, false
	}
	n, err := strconv.Atoi(s[len(prefix):j])
	if err != nil {
		return 0, 0, false
	}
	return n, j, true
}

// normalizeQuotes rewrites the read dialect's identifier quoting to
// backticks so the statement parses under the builder's grammar. String
// literals are preserved.
func normalizeQuotes(sql string, read Dialect) string {
	style := read.quoting()
	if style == quoteBacktick {
		return sql
	}

	var sb strings.Builder
	i := 0
	for i < len(sql) {
		c := sql[i]

		if c == '\'' {
			j := skipString(sql, i)
			sb.WriteString(sql[i:j])
			i = j
			continue
		}

		if style == quoteDouble && c == '"' {
			j := i + 1
			for j < len(sql) && sql[j] != '"' {
				j++
			}
			if j < len(sql) {
				sb.WriteByte('`')
				sb.WriteString(sql[i+1 : j])
				sb.WriteByte('`')
				i = j + 1
				continue
			}
		}

		if style == quoteBracket && c == '[' {
			j := i + 1
			for j < len(sql) && sql[j] != ']' {
				j++
			}
			if j < len(sql) {
				sb.WriteByte('`')
				sb.WriteString(sql[i+1 : j])
				sb.WriteByte('`')
				i = j + 1
				continue
			}
		}

		sb.WriteByte(c)
		i++
	}
	return sb.String()
}

// denormalizeQuotes rewrites backtick-quoted identifiers to the write
// dialect's quoting.
func denormalizeQuotes(sql string, write Dialect) string {
	if write.quoting() == quoteBacktick {
		return sql
	}

	var sb strings.Builder
	i := 0
	for i < len(sql) {
		c := sql[i]

		if c == '\'' {
			j := skipString(sql, i)
			sb.WriteString(sql[i:j])
			i = j
			continue
		}

		if c == '`' {
			j := i + 1
			for j < len(sql) && sql[j] != '`' {
				j++
			}
			if j < len(sql) {
				sb.WriteString(QuoteIdent(write, sql[i+1:j]))
				i = j + 1
				continue
			}
		}

		sb.WriteByte(c)
		i++
	}
	return sb.String()
}

// skipString returns the index just past a single-quoted literal
// starting at i, honoring doubled-quote escapes.
func skipString(sql string, i int) int {
	j := i + 1
	for j < len(sql) {
		if sql[j] == '\'' {
			if j+1 < len(sql) && sql[j+1] == '\'' {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return j
}
