package sqlbuilder

import (
	"testing"

	"github.com/semgate-labs/semgate/internal/errors"
)

func TestValidateAcceptsSelect(t *testing.T) {
	cases := []string{
		"SELECT 1",
		"SELECT city, SUM(amount) FROM orders GROUP BY city",
		"SELECT a FROM t WHERE b = ? ORDER BY a LIMIT 10",
		"SELECT a FROM t UNION SELECT a FROM u",
		"SELECT '--' FROM t",
		"SELECT 'with # hash' FROM t",
	}
	for _, sql := range cases {
		if err := Validate(sql, DialectPostgres); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", sql, err)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		kind errors.Kind
	}{
		{"empty", "   ", errors.KindValidation},
		{"line comment", "SELECT 1 -- drop it", errors.KindValidation},
		{"block comment", "SELECT /* hidden */ 1", errors.KindValidation},
		{"hash comment", "SELECT 1 # note", errors.KindValidation},
		{"multi-statement", "SELECT 1; SELECT 2", errors.KindValidation},
		{"delete", "DELETE FROM orders", errors.KindValidation},
		{"update", "UPDATE orders SET amount = 0", errors.KindValidation},
		{"insert", "INSERT INTO orders VALUES (1)", errors.KindValidation},
		{"gibberish", "NOT EVEN SQL", errors.KindBuild},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Validate(c.sql, DialectPostgres)
			if err == nil {
				t.Fatalf("Validate(%q) accepted", c.sql)
			}
			if got := errors.KindOf(err); got != c.kind {
				t.Errorf("kind = %s, want %s", got, c.kind)
			}
		})
	}
}

func TestValidateQuotedIdentifiers(t *testing.T) {
	if err := Validate(`SELECT "Order Count" FROM t`, DialectPostgres); err != nil {
		t.Errorf("double-quoted identifier rejected: %v", err)
	}
	if err := Validate("SELECT [Order Count] FROM t", DialectSQLServer); err != nil {
		t.Errorf("bracket identifier rejected: %v", err)
	}
	if err := Validate("SELECT `Order Count` FROM t", DialectMySQL); err != nil {
		t.Errorf("backtick identifier rejected: %v", err)
	}
}
