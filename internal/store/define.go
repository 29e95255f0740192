package store

import (
	"context"
	"fmt"
	"strings"

	"lattice-backend/internal/metadata"
)

// Define creates the table and unique indexes for a model descriptor if they
// do not exist yet. It is the store-side half of model registration: every
// registered model gets its table defined before the server starts serving.
//
// Unique indexes are named ux_<table>__<field> so the dialect error mappers
// can recover the violating field from constraint-violation errors.
func (s *Store) Define(ctx context.Context, m *metadata.Model) error {
	var cols []string
	cols = append(cols, fmt.Sprintf("%s %s", metadata.ColID, s.Dialect.PrimaryKeyDDL()))

	for _, f := range m.Fields {
		col := fmt.Sprintf("%s %s", f.Name, s.Dialect.ColumnType(f.Type, f.MaxLen))
		if f.Required && f.Default == nil {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}

	timeType := s.Dialect.ColumnType(metadata.TypeTime, 0)
	cols = append(cols,
		fmt.Sprintf("%s %s NOT NULL DEFAULT %s", metadata.ColCreatedAt, timeType, s.Dialect.NowExpr()),
		fmt.Sprintf("%s %s NOT NULL DEFAULT %s", metadata.ColUpdatedAt, timeType, s.Dialect.NowExpr()),
	)
	if m.SoftDelete {
		cols = append(cols, fmt.Sprintf("%s %s", metadata.ColDeletedAt, timeType))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", m.Table, strings.Join(cols, ",\n  "))
	if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("define %s: %w", m.Table, err)
	}

	for _, f := range m.Fields {
		if !f.Unique {
			continue
		}
		idx := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS ux_%s__%s ON %s (%s)",
			m.Table, f.Name, m.Table, f.Name)
		if _, err := s.DB.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("define unique index on %s.%s: %w", m.Table, f.Name, err)
		}
	}

	return nil
}

// DefineAll defines tables for every model in the registry. Called once at
// startup after composition; any failure aborts startup.
func (s *Store) DefineAll(ctx context.Context, reg *metadata.Registry) error {
	for _, m := range reg.All() {
		if err := s.Define(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
