package adapters

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/semgate-labs/semgate/internal/errors"
)

// Placeholder rewriting helpers shared by the engine adapters. Input
// statements carry canonical `?` placeholders; each helper emits the
// engine's native form. Question marks inside string literals are left
// alone.

// RewritePassthrough keeps `?` placeholders as-is, for engines whose
// drivers accept them natively.
func RewritePassthrough(sqlText string, params []interface{}) (string, []interface{}, error) {
	if err := checkArity(sqlText, params); err != nil {
		return "", nil, err
	}
	return sqlText, params, nil
}

// RewriteNumbered rewrites `?` to prefixN, e.g. $1 for postgres, :1 for
// oracle, @p1 for sqlserver and bigquery.
func RewriteNumbered(sqlText string, params []interface{}, prefix string) (string, []interface{}, error) {
	if err := checkArity(sqlText, params); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	n := 0
	scanPlaceholders(sqlText, &sb, func() {
		n++
		sb.WriteString(prefix)
		fmt.Fprintf(&sb, "%d", n)
	})
	return sb.String(), params, nil
}

// RewriteClickHouse rewrites `?` to {pN:Type} server-side parameters,
// with the type inferred from the Go value. The parameter vector is
// converted to named arguments since {pN:Type} binds by name.
func RewriteClickHouse(sqlText string, params []interface{}) (string, []interface{}, error) {
	if err := checkArity(sqlText, params); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	named := make([]interface{}, 0, len(params))
	n := 0
	var convErr error
	scanPlaceholders(sqlText, &sb, func() {
		t, err := clickhouseType(params[n])
		if err != nil && convErr == nil {
			convErr = err
		}
		n++
		fmt.Fprintf(&sb, "{p%d:%s}", n, t)
		named = append(named, sql.Named(fmt.Sprintf("p%d", n), params[n-1]))
	})
	if convErr != nil {
		return "", nil, convErr
	}
	return sb.String(), named, nil
}

// RewriteInline substitutes each `?` with the literal rendering of its
// parameter, for engines whose drivers take no bind parameters. Only
// strings, integers, floats, booleans, times, and nil are accepted;
// strings are escaped by doubling single quotes.
func RewriteInline(sqlText string, params []interface{}) (string, []interface{}, error) {
	if err := checkArity(sqlText, params); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	n := 0
	var convErr error
	scanPlaceholders(sqlText, &sb, func() {
		lit, err := inlineLiteral(params[n])
		if err != nil && convErr == nil {
			convErr = err
		}
		n++
		sb.WriteString(lit)
	})
	if convErr != nil {
		return "", nil, convErr
	}
	return sb.String(), nil, nil
}

// CountPlaceholders returns the number of `?` placeholders outside
// string literals.
func CountPlaceholders(sqlText string) int {
	count := 0
	var sb strings.Builder
	scanPlaceholders(sqlText, &sb, func() { count++ })
	return count
}

// scanPlaceholders copies sqlText into sb, invoking emit instead of
// copying each `?` found outside a string literal or quoted identifier.
func scanPlaceholders(sqlText string, sb *strings.Builder, emit func()) {
	i := 0
	for i < len(sqlText) {
		c := sqlText[i]
		switch c {
		case '\'':
			j := skipLiteral(sqlText, i, '\'')
			sb.WriteString(sqlText[i:j])
			i = j
		case '"', '`':
			j := skipLiteral(sqlText, i, c)
			sb.WriteString(sqlText[i:j])
			i = j
		case '[':
			j := i + 1
			for j < len(sqlText) && sqlText[j] != ']' {
				j++
			}
			if j < len(sqlText) {
				j++
			}
			sb.WriteString(sqlText[i:j])
			i = j
		case '?':
			emit()
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
}

// skipLiteral returns the index just past a quoted region starting at i,
// honoring doubled-quote escapes.
func skipLiteral(sqlText string, i int, quote byte) int {
	j := i + 1
	for j < len(sqlText) {
		if sqlText[j] == quote {
			if j+1 < len(sqlText) && sqlText[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return j
}

func checkArity(sqlText string, params []interface{}) error {
	if n := CountPlaceholders(sqlText); n != len(params) {
		return errors.NewBuild("statement has %d placeholders but %d parameters", n, len(params))
	}
	return nil
}

func clickhouseType(v interface{}) (string, error) {
	switch v.(type) {
	case nil:
		return "Nullable(String)", nil
	case string:
		return "String", nil
	case int, int8, int16, int32, int64:
		return "Int64", nil
	case uint, uint8, uint16, uint32, uint64:
		return "UInt64", nil
	case float32, float64:
		return "Float64", nil
	case bool:
		return "Bool", nil
	case time.Time:
		return "DateTime64(3)", nil
	default:
		return "", errors.NewBuild("unsupported parameter type %T for clickhouse", v)
	}
}

func inlineLiteral(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32, float64:
		return fmt.Sprintf("%v", val), nil
	case time.Time:
		return "TIMESTAMP '" + val.UTC().Format("2006-01-02 15:04:05.000") + "'", nil
	default:
		return "", errors.NewBuild("unsupported parameter type %T for value inlining", v)
	}
}
