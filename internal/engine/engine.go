package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"lattice-backend/internal/metadata"
	"lattice-backend/internal/store"
)

// UniquePolicy configures the uniqueness validator. IncludeDeleted makes the
// probe see soft-deleted rows, so a logically-deleted username still counts
// as taken.
type UniquePolicy struct {
	IncludeDeleted bool
}

// Engine is the generic persistence facade every feature module calls
// instead of touching the store directly. It is stateless across
// invocations; each verb resolves the model, normalizes inputs, executes
// against the store and translates failures onto the closed error taxonomy.
type Engine struct {
	store    *store.Store
	registry *metadata.Registry
	norm     Normalizer
	unique   UniquePolicy
	debug    bool
}

func New(s *store.Store, reg *metadata.Registry, norm Normalizer, unique UniquePolicy, debug bool) *Engine {
	return &Engine{store: s, registry: reg, norm: norm, unique: unique, debug: debug}
}

// Normalizer exposes the engine's configured query normalizer so feature
// modules can pre-shape parameters with the same limits.
func (e *Engine) Normalizer() Normalizer {
	return e.norm
}

// Create validates and persists one row, then re-reads it with the caller's
// projection inside the same transaction. saveFields defaults to the
// attribute keys; returnFields to just the id.
func (e *Engine) Create(ctx context.Context, model string, attributes map[string]any, saveFields, returnFields []string) Result {
	m, fail := e.resolveModel(model)
	if fail != nil {
		return *fail
	}
	if len(attributes) == 0 {
		return Fail(CodeValidationFailed, "You can not create an item without attributes.")
	}

	fields := normalizeSaveFields(m, attributes, saveFields)
	if len(fields) == 0 {
		return Fail(CodeValidationFailed, "None of the given fields can be saved.")
	}
	if errs := validateWrite(m, attributes, fields, true); len(errs) > 0 {
		return FailFields(CodeValidationFailed, "Validation was failed.", errs)
	}

	values := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := attributes[f]; ok {
			values[f] = v
		}
	}
	for _, f := range m.Fields {
		if f.Default == nil {
			continue
		}
		if _, ok := values[f.Name]; !ok {
			values[f.Name] = f.Default
		}
	}

	proj := e.norm.Projection(returnFields, m)

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return e.translate(err, fields, CodeDataNotFound)
	}
	defer tx.Rollback() //nolint:errcheck

	sqlStr, params := e.buildInsert(m, values)
	idRow, err := store.QueryRow(ctx, tx, sqlStr, params...)
	if err != nil {
		return e.translate(err, fields, CodeDataNotFound)
	}

	row, err := e.fetchByID(ctx, tx, m, idRow[metadata.ColID], proj)
	if err != nil {
		return e.translate(err, fields, CodeDataNotFound)
	}
	if err := tx.Commit(); err != nil {
		return e.translate(err, fields, CodeDataNotFound)
	}

	return Success(row, 1)
}

// FindAll returns the rows matching the normalized conditions plus the total
// match count disregarding pagination, so callers can build page counts.
func (e *Engine) FindAll(ctx context.Context, model string, where map[string]any, order map[string]string, pagination *Page, returnFields []string) Result {
	m, fail := e.resolveModel(model)
	if fail != nil {
		return *fail
	}

	proj := e.norm.Projection(returnFields, m)
	filters := e.norm.Filter(where, m)
	orders := e.norm.Order(order, m)
	page := e.norm.Pagination(pagination)

	sqlStr, params := e.buildSelect(m, proj, filters, orders, &page)
	rows, err := store.QueryRows(ctx, e.store.DB, sqlStr, params...)
	if err != nil {
		return e.translate(err, proj, CodeDataNotFound)
	}

	countSQL, countParams := e.buildCount(m, filters)
	countRow, err := store.QueryRow(ctx, e.store.DB, countSQL, countParams...)
	if err != nil {
		return e.translate(err, proj, CodeDataNotFound)
	}
	count := toInt64(countRow["count"])

	if rows == nil {
		rows = []map[string]any{}
	}
	return Success(rows, count)
}

// FindByID fetches one row by its positive integer id. A non-positive id is
// rejected before any store access; a missing row reports ERROR_ID_NOT_FOUND
// so callers can tell "bad id" from "id not present".
func (e *Engine) FindByID(ctx context.Context, model string, id int64, returnFields []string) Result {
	m, fail := e.resolveModel(model)
	if fail != nil {
		return *fail
	}
	if fail := validID(id); fail != nil {
		return *fail
	}

	proj := e.norm.Projection(returnFields, m)
	row, err := e.fetchByID(ctx, e.store.DB, m, id, proj)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Fail(CodeIDNotFound, fmt.Sprintf("The document with id [%d] was not found.", id))
		}
		return e.translate(err, proj, CodeIDNotFound)
	}
	return Success(row, 1)
}

// FindOne fetches the first row matching the exact-equality conditions.
// A miss reports ERROR_DATA_NOT_FOUND, kept distinct from the id-based code.
func (e *Engine) FindOne(ctx context.Context, model string, where map[string]any, returnFields []string) Result {
	return e.findOne(ctx, model, where, returnFields, false)
}

// FindOneInternal is FindOne with a privileged projection that may include
// internal-only fields. Reserved for trusted in-process callers; nothing
// reachable from the wire uses it.
func (e *Engine) FindOneInternal(ctx context.Context, model string, where map[string]any, returnFields []string) Result {
	return e.findOne(ctx, model, where, returnFields, true)
}

func (e *Engine) findOne(ctx context.Context, model string, where map[string]any, returnFields []string, privileged bool) Result {
	m, fail := e.resolveModel(model)
	if fail != nil {
		return *fail
	}

	var proj []string
	if privileged {
		proj = e.norm.PrivilegedProjection(returnFields, m)
	} else {
		proj = e.norm.Projection(returnFields, m)
	}

	filters := exactFilters(where, m)
	sqlStr, params := e.buildSelect(m, proj, filters, nil, &Page{Limit: 1})
	row, err := store.QueryRow(ctx, e.store.DB, sqlStr, params...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Fail(CodeDataNotFound, "The document you retrieve was not found.")
		}
		return e.translate(err, proj, CodeDataNotFound)
	}
	return Success(row, 1)
}

// Update loads the row, applies the save fields and re-reads the caller's
// projection, all inside one transaction so a concurrent writer cannot slip
// between the load and the write.
func (e *Engine) Update(ctx context.Context, model string, id int64, attributes map[string]any, saveFields, returnFields []string) Result {
	m, fail := e.resolveModel(model)
	if fail != nil {
		return *fail
	}
	if fail := validID(id); fail != nil {
		return *fail
	}
	if len(attributes) == 0 {
		return Fail(CodeValidationFailed, "You can not update an item without attributes.")
	}

	fields := normalizeSaveFields(m, attributes, saveFields)
	if len(fields) == 0 {
		return Fail(CodeValidationFailed, "None of the given fields can be saved.")
	}
	if errs := validateWrite(m, attributes, fields, false); len(errs) > 0 {
		return FailFields(CodeValidationFailed, "Validation was failed.", errs)
	}

	proj := e.norm.Projection(returnFields, m)

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return e.translate(err, fields, CodeIDNotFound)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := e.fetchByID(ctx, tx, m, id, []string{metadata.ColID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Fail(CodeIDNotFound, fmt.Sprintf("The document with id [%d] was not found.", id))
		}
		return e.translate(err, fields, CodeIDNotFound)
	}

	sqlStr, params := e.buildUpdate(m, id, attributes, fields)
	if _, err := store.Exec(ctx, tx, sqlStr, params...); err != nil {
		return e.translate(err, fields, CodeIDNotFound)
	}

	row, err := e.fetchByID(ctx, tx, m, id, proj)
	if err != nil {
		return e.translate(err, fields, CodeIDNotFound)
	}
	if err := tx.Commit(); err != nil {
		return e.translate(err, fields, CodeIDNotFound)
	}

	return Success(row, 1)
}

// DeleteByID removes the row (soft delete when the model asks for it) and
// returns the pre-deletion projection so callers can show what was removed.
// Load and delete share one transaction.
func (e *Engine) DeleteByID(ctx context.Context, model string, id int64, returnFields []string) Result {
	m, fail := e.resolveModel(model)
	if fail != nil {
		return *fail
	}
	if fail := validID(id); fail != nil {
		return *fail
	}

	proj := e.norm.Projection(returnFields, m)

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return e.translate(err, proj, CodeIDNotFound)
	}
	defer tx.Rollback() //nolint:errcheck

	row, err := e.fetchByID(ctx, tx, m, id, proj)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Fail(CodeIDNotFound, fmt.Sprintf("The document with id [%d] was not found.", id))
		}
		return e.translate(err, proj, CodeIDNotFound)
	}

	pb := e.store.Dialect.NewParamBuilder()
	var sqlStr string
	if m.SoftDelete {
		sqlStr = fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s AND %s IS NULL",
			m.Table, metadata.ColDeletedAt, e.store.Dialect.NowExpr(),
			metadata.ColID, pb.Add(id), metadata.ColDeletedAt)
	} else {
		sqlStr = fmt.Sprintf("DELETE FROM %s WHERE %s = %s", m.Table, metadata.ColID, pb.Add(id))
	}

	affected, err := store.Exec(ctx, tx, sqlStr, pb.Params()...)
	if err != nil {
		return e.translate(err, proj, CodeIDNotFound)
	}
	if affected == 0 {
		return Fail(CodeIDNotFound, fmt.Sprintf("The document with id [%d] was not found.", id))
	}
	if err := tx.Commit(); err != nil {
		return e.translate(err, proj, CodeIDNotFound)
	}

	return Success(row, 1)
}

func (e *Engine) resolveModel(name string) (*metadata.Model, *Result) {
	m, err := e.registry.Resolve(name)
	if err != nil {
		r := Fail(CodeInvalidModel, fmt.Sprintf("Model [%s] was not registered.", name))
		return nil, &r
	}
	return m, nil
}

func validID(id int64) *Result {
	if id <= 0 {
		r := Fail(CodeInvalidID, fmt.Sprintf("Id must be a positive integer. You gave [%d].", id))
		return &r
	}
	return nil
}

func (e *Engine) translate(err error, allowedFields []string, notFound Code) Result {
	return Translate(e.store.Dialect.MapError(err), allowedFields, notFound, e.debug)
}

// --- SQL building ---

func (e *Engine) buildInsert(m *metadata.Model, values map[string]any) (string, []any) {
	pb := e.store.Dialect.NewParamBuilder()
	var cols, placeholders []string
	for _, f := range m.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, f.Name)
		placeholders = append(placeholders, pb.Add(v))
	}

	now := e.store.Dialect.NowExpr()
	cols = append(cols, metadata.ColCreatedAt, metadata.ColUpdatedAt)
	placeholders = append(placeholders, now, now)

	sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		m.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), metadata.ColID)
	return sqlStr, pb.Params()
}

func (e *Engine) buildUpdate(m *metadata.Model, id int64, attributes map[string]any, fields []string) (string, []any) {
	pb := e.store.Dialect.NewParamBuilder()
	var sets []string
	for _, f := range fields {
		v, ok := attributes[f]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", f, pb.Add(v)))
	}
	sets = append(sets, fmt.Sprintf("%s = %s", metadata.ColUpdatedAt, e.store.Dialect.NowExpr()))

	sqlStr := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		m.Table, strings.Join(sets, ", "), metadata.ColID, pb.Add(id))
	if m.SoftDelete {
		sqlStr += fmt.Sprintf(" AND %s IS NULL", metadata.ColDeletedAt)
	}
	return sqlStr, pb.Params()
}

func (e *Engine) buildSelect(m *metadata.Model, proj []string, filters []WhereClause, orders []OrderClause, page *Page) (string, []any) {
	pb := e.store.Dialect.NewParamBuilder()

	sqlStr := fmt.Sprintf("SELECT %s FROM %s", strings.Join(proj, ", "), m.Table)
	if where := e.buildWhere(m, filters, pb, true); where != "" {
		sqlStr += " WHERE " + where
	}

	if len(orders) > 0 {
		parts := make([]string, len(orders))
		for i, o := range orders {
			parts[i] = o.Field + " " + o.Dir
		}
		sqlStr += " ORDER BY " + strings.Join(parts, ", ")
	}

	if page != nil {
		sqlStr += fmt.Sprintf(" LIMIT %s OFFSET %s", pb.Add(page.Limit), pb.Add(page.Offset))
	}
	return sqlStr, pb.Params()
}

func (e *Engine) buildCount(m *metadata.Model, filters []WhereClause) (string, []any) {
	pb := e.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", m.Table)
	if where := e.buildWhere(m, filters, pb, true); where != "" {
		sqlStr += " WHERE " + where
	}
	return sqlStr, pb.Params()
}

func (e *Engine) buildWhere(m *metadata.Model, filters []WhereClause, pb store.ParamBuilder, excludeDeleted bool) string {
	var parts []string
	if excludeDeleted && m.SoftDelete {
		parts = append(parts, metadata.ColDeletedAt+" IS NULL")
	}
	for _, f := range filters {
		if f.Contains {
			parts = append(parts, fmt.Sprintf("%s LIKE %s", f.Field, pb.Add(fmt.Sprintf("%%%v%%", f.Value))))
		} else {
			parts = append(parts, fmt.Sprintf("%s = %s", f.Field, pb.Add(f.Value)))
		}
	}
	return strings.Join(parts, " AND ")
}

func (e *Engine) fetchByID(ctx context.Context, q store.Querier, m *metadata.Model, id any, proj []string) (map[string]any, error) {
	pb := e.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(proj, ", "), m.Table, metadata.ColID, pb.Add(id))
	if m.SoftDelete {
		sqlStr += fmt.Sprintf(" AND %s IS NULL", metadata.ColDeletedAt)
	}
	return store.QueryRow(ctx, q, sqlStr, pb.Params()...)
}

// exactFilters builds exact-equality clauses from a find_one predicate,
// dropping fields outside the model's declared fields and values that are
// neither strings nor numbers.
func exactFilters(where map[string]any, m *metadata.Model) []WhereClause {
	declared := m.DeclaredFields()

	fields := make([]string, 0, len(where))
	for f := range where {
		fields = append(fields, f)
	}
	// sorted for deterministic SQL
	sort.Strings(fields)

	var out []WhereClause
	for _, f := range fields {
		if !fieldIn(f, declared) {
			continue
		}
		switch where[f].(type) {
		case string, int, int64, float64:
		default:
			continue
		}
		out = append(out, WhereClause{Field: f, Value: where[f]})
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
