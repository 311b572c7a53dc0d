// Package sqlbuilder renders compiled query plans to dialect-specific
// SQL strings with canonical positional placeholders. The builder works
// on structured plans and parsed syntax trees only; user-supplied
// fragments are never concatenated into statements.
package sqlbuilder

import "strings"

// Dialect names a target SQL dialect.
type Dialect string

const (
	DialectPostgres   Dialect = "postgres"
	DialectRedshift   Dialect = "redshift"
	DialectTimescale  Dialect = "timescaledb"
	DialectCockroach  Dialect = "cockroachdb"
	DialectMySQL      Dialect = "mysql"
	DialectMariaDB    Dialect = "mariadb"
	DialectSQLite     Dialect = "sqlite"
	DialectDuckDB     Dialect = "duckdb"
	DialectSnowflake  Dialect = "snowflake"
	DialectBigQuery   Dialect = "bigquery"
	DialectDatabricks Dialect = "databricks"
	DialectClickHouse Dialect = "clickhouse"
	DialectTrino      Dialect = "trino"
	DialectSQLServer  Dialect = "sqlserver"
	DialectOracle     Dialect = "oracle"
)

// DialectFor maps an engine label to its dialect. Unknown engines fall
// back to ANSI double-quoted identifiers with LIMIT/OFFSET.
func DialectFor(engine string) Dialect {
	switch d := Dialect(engine); d {
	case DialectPostgres, DialectRedshift, DialectTimescale, DialectCockroach,
		DialectMySQL, DialectMariaDB, DialectSQLite, DialectDuckDB,
		DialectSnowflake, DialectBigQuery, DialectDatabricks,
		DialectClickHouse, DialectTrino, DialectSQLServer, DialectOracle:
		return d
	default:
		return DialectPostgres
	}
}

// quoteStyle is how a dialect quotes identifiers.
type quoteStyle int

const (
	quoteDouble quoteStyle = iota
	quoteBacktick
	quoteBracket
)

func (d Dialect) quoting() quoteStyle {
	switch d {
	case DialectMySQL, DialectMariaDB, DialectBigQuery, DialectDatabricks, DialectClickHouse:
		return quoteBacktick
	case DialectSQLServer:
		return quoteBracket
	default:
		return quoteDouble
	}
}

// QuoteIdent quotes a single identifier for the dialect. Embedded quote
// characters are escaped by doubling.
func QuoteIdent(d Dialect, name string) string {
	switch d.quoting() {
	case quoteBacktick:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case quoteBracket:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// QuoteQualified quotes a possibly dotted table.column reference,
// quoting each path segment separately. The table part is left bare
// when unquoted in the source plan.
func QuoteQualified(d Dialect, table, column string) string {
	if table == "" {
		return QuoteIdent(d, column)
	}
	return table + "." + QuoteIdent(d, column)
}

// offsetFetchDialect reports whether the dialect uses the
// OFFSET ... FETCH form instead of LIMIT/OFFSET.
func offsetFetchDialect(d Dialect) bool {
	return d == DialectSQLServer || d == DialectOracle
}
