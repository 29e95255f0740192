package store

import "strings"

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
// Used for development and tests; production deployments run postgres.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NowExpr() string { return "CURRENT_TIMESTAMP" }

func (d *SQLiteDialect) PrimaryKeyDDL() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (d *SQLiteDialect) ColumnType(fieldType string, maxLen int) string {
	switch fieldType {
	case "string", "text":
		return "TEXT"
	case "int", "bigint":
		return "INTEGER"
	case "bool":
		return "BOOLEAN"
	case "time":
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// MapError translates sqlite errors. The driver reports unique violations as
// "UNIQUE constraint failed: <table>.<field>", which carries the violating
// column directly.
func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	marker := "UNIQUE constraint failed: "
	idx := strings.Index(errStr, marker)
	if idx < 0 {
		if strings.Contains(errStr, "constraint failed: UNIQUE") {
			return NewUniqueViolation("")
		}
		return err
	}

	rest := errStr[idx+len(marker):]
	// Trim trailing driver decoration, e.g. " (2067)".
	if end := strings.IndexAny(rest, " ("); end > 0 {
		rest = rest[:end]
	}
	if dot := strings.LastIndex(rest, "."); dot >= 0 {
		return NewUniqueViolation(rest[dot+1:])
	}
	return NewUniqueViolation("")
}
