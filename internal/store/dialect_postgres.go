package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string { return "NOW()" }

func (d *PostgresDialect) PrimaryKeyDDL() string { return "BIGSERIAL PRIMARY KEY" }

func (d *PostgresDialect) ColumnType(fieldType string, maxLen int) string {
	switch fieldType {
	case "string":
		if maxLen > 0 {
			return fmt.Sprintf("VARCHAR(%d)", maxLen)
		}
		return "TEXT"
	case "text":
		return "TEXT"
	case "int":
		return "INTEGER"
	case "bigint":
		return "BIGINT"
	case "bool":
		return "BOOLEAN"
	case "time":
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// MapError translates pgx errors. Unique violations (SQLSTATE 23505) become
// field-scoped ValidationErrors; the violating column is recovered from the
// ux_<table>__<field> index naming used by Define.
func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return NewUniqueViolation(fieldFromConstraint(pgErr.ConstraintName))
	}

	// Driver errors that arrive without a PgError (e.g. wrapped by helpers).
	errStr := err.Error()
	if strings.Contains(errStr, "23505") || strings.Contains(errStr, "duplicate key") {
		return NewUniqueViolation("")
	}

	return err
}

// fieldFromConstraint extracts the field name from a ux_<table>__<field>
// constraint name. The double underscore separates the table part from the
// field part, since both may contain single underscores themselves.
func fieldFromConstraint(constraint string) string {
	if !strings.HasPrefix(constraint, "ux_") {
		return ""
	}
	idx := strings.LastIndex(constraint, "__")
	if idx < 0 {
		return ""
	}
	return constraint[idx+2:]
}
