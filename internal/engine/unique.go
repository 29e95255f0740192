package engine

import (
	"context"
	"errors"
	"fmt"

	"lattice-backend/internal/metadata"
	"lattice-backend/internal/store"
)

// ValidateUnique probes whether a value is already taken for a field on the
// model's uniqueness allow-list. Whether soft-deleted rows count as taken is
// the engine's configured UniquePolicy, not an implicit default.
//
// The probe is advisory only: two concurrent creates can both pass it before
// either insert commits. The unique index the store defines for the field is
// the actual authority; this check exists to give callers a field-scoped
// error before they attempt the write.
func (e *Engine) ValidateUnique(ctx context.Context, model, field string, value any) Result {
	m, fail := e.resolveModel(model)
	if fail != nil {
		return *fail
	}

	if field == "" || !m.AllowsUniqueCheck(field) {
		return Fail(CodeValidationFailed, fmt.Sprintf("Field [%s] can not be used for uniqueness checks.", field))
	}
	switch v := value.(type) {
	case string:
		if v == "" {
			return Fail(CodeValidationFailed, "Validation value can not be blank.")
		}
	case int, int64, float64:
	default:
		return Fail(CodeValidationFailed, "Validation value must be a string or a number.")
	}

	pb := e.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		field, m.Table, field, pb.Add(value))
	if m.SoftDelete && !e.unique.IncludeDeleted {
		sqlStr += fmt.Sprintf(" AND %s IS NULL", metadata.ColDeletedAt)
	}
	sqlStr += " LIMIT 1"

	_, err := store.QueryRow(ctx, e.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Success(map[string]any{field: value}, 0)
		}
		return e.translate(err, []string{field}, CodeDataNotFound)
	}

	return FailFields(CodeValidationFailed, "Validation was failed.", map[string]string{
		field: fmt.Sprintf("This %s with value [%v] has already been taken.", field, value),
	})
}
