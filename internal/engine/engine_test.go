package engine_test

import (
	"context"
	"strings"
	"testing"

	"lattice-backend/internal/config"
	"lattice-backend/internal/engine"
	"lattice-backend/internal/metadata"
	"lattice-backend/internal/store"
)

func articlesModel() *metadata.Model {
	return &metadata.Model{
		Name:       "articles",
		SoftDelete: true,
		Fields: []metadata.Field{
			{Name: "slug", Type: metadata.TypeString, Required: true, Unique: true, MaxLen: 64},
			{Name: "title", Type: metadata.TypeString, Required: true, MaxLen: 128},
			{Name: "body", Type: metadata.TypeText},
			{Name: "draft_notes", Type: metadata.TypeText, Internal: true},
			{
				Name: "rating", Type: metadata.TypeInt, Default: 0,
				Check:    `value >= 0 && value <= 5`,
				CheckMsg: "Rating must be between 0 and 5.",
			},
		},
		Match: map[string]string{
			"title": metadata.MatchContains,
			"slug":  metadata.MatchExact,
		},
		UniqueCheck: []string{"slug"},
	}
}

func testRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry("test")
	if err := reg.Register(articlesModel()); err != nil {
		t.Fatalf("register model: %v", err)
	}
	reg.Freeze()
	return reg
}

func testEngine(t *testing.T) (*engine.Engine, *store.Store) {
	t.Helper()
	ctx := context.Background()

	s, err := store.New(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		Path:   t.TempDir(),
		Name:   "engine_test",
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(s.Close)

	reg := testRegistry(t)
	if err := s.DefineAll(ctx, reg); err != nil {
		t.Fatalf("define tables: %v", err)
	}

	norm := engine.NewNormalizer(engine.Limits{DefaultLimit: 10, MaxLimit: 50})
	return engine.New(s, reg, norm, engine.UniquePolicy{IncludeDeleted: true}, false), s
}

func mustCreate(t *testing.T, e *engine.Engine, attrs map[string]any) map[string]any {
	t.Helper()
	r := e.Create(context.Background(), "articles", attrs, nil,
		[]string{"id", "slug", "title", "rating"})
	if !r.OK() {
		t.Fatalf("create failed: %s %s %v", r.ErrorCode, r.Message, r.FieldErrors)
	}
	return r.Row()
}

func TestCreateAppliesDefaultsAndProjection(t *testing.T) {
	e, _ := testEngine(t)

	row := mustCreate(t, e, map[string]any{"slug": "hello", "title": "Hello"})
	if toID(row["id"]) <= 0 {
		t.Fatalf("expected a positive id, got %v", row["id"])
	}
	if row["slug"] != "hello" {
		t.Fatalf("expected slug=hello, got %v", row["slug"])
	}
	if toID(row["rating"]) != 0 {
		t.Fatalf("expected default rating=0, got %v", row["rating"])
	}
	if _, ok := row["body"]; ok {
		t.Fatal("expected body to be outside the requested projection")
	}
}

func TestCreateNeverReturnsInternalFields(t *testing.T) {
	e, _ := testEngine(t)

	r := e.Create(context.Background(), "articles",
		map[string]any{"slug": "a", "title": "A", "draft_notes": "wip"},
		nil, []string{"id", "draft_notes"})
	if !r.OK() {
		t.Fatalf("create failed: %s", r.Message)
	}
	if _, ok := r.Row()["draft_notes"]; ok {
		t.Fatal("expected internal field to be stripped from the projection")
	}
}

func TestCreateValidation(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	r := e.Create(ctx, "articles", map[string]any{"slug": "x"}, nil, nil)
	if r.OK() || r.ErrorCode != engine.CodeValidationFailed {
		t.Fatalf("expected validation failure, got %+v", r)
	}
	if _, ok := r.FieldErrors["title"]; !ok {
		t.Fatalf("expected field error on title, got %v", r.FieldErrors)
	}

	r = e.Create(ctx, "articles", map[string]any{
		"slug": "x", "title": "X", "rating": 9,
	}, nil, nil)
	if r.OK() {
		t.Fatal("expected check expression to reject rating=9")
	}
	if r.FieldErrors["rating"] != "Rating must be between 0 and 5." {
		t.Fatalf("expected check message, got %v", r.FieldErrors)
	}

	r = e.Create(ctx, "articles", map[string]any{
		"slug": strings.Repeat("a", 65), "title": "X",
	}, nil, nil)
	if r.OK() {
		t.Fatal("expected max-length failure")
	}
	if _, ok := r.FieldErrors["slug"]; !ok {
		t.Fatalf("expected field error on slug, got %v", r.FieldErrors)
	}

	r = e.Create(ctx, "articles", nil, nil, nil)
	if r.OK() || r.ErrorCode != engine.CodeValidationFailed {
		t.Fatalf("expected empty attributes to fail, got %+v", r)
	}

	// Nothing was persisted along the way.
	all := e.FindAll(ctx, "articles", nil, nil, nil, nil)
	if all.Meta.Count != 0 {
		t.Fatalf("expected an empty table, got count=%d", all.Meta.Count)
	}
}

func TestCreateDuplicateSlug(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	mustCreate(t, e, map[string]any{"slug": "dup", "title": "First"})

	r := e.Create(ctx, "articles", map[string]any{"slug": "dup", "title": "Second"}, nil, nil)
	if r.OK() || r.ErrorCode != engine.CodeValidationFailed {
		t.Fatalf("expected validation failure, got %+v", r)
	}
	if msg, ok := r.FieldErrors["slug"]; !ok || !strings.Contains(msg, "taken") {
		t.Fatalf("expected duplicate slug field error, got %v", r.FieldErrors)
	}

	all := e.FindAll(ctx, "articles", nil, nil, nil, nil)
	if all.Meta.Count != 1 {
		t.Fatalf("expected 1 row after failed duplicate, got %d", all.Meta.Count)
	}
}

func TestSaveFieldsLimitWhatPersists(t *testing.T) {
	e, _ := testEngine(t)

	r := e.Create(context.Background(), "articles", map[string]any{
		"slug": "partial", "title": "Partial", "rating": 4, "bogus": "x",
	}, []string{"slug", "title", "bogus"}, []string{"id", "rating"})
	if !r.OK() {
		t.Fatalf("create failed: %s", r.Message)
	}
	// rating was outside saveFields, so the schema default applied.
	if toID(r.Row()["rating"]) != 0 {
		t.Fatalf("expected default rating, got %v", r.Row()["rating"])
	}
}

func TestFindAll(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	mustCreate(t, e, map[string]any{"slug": "alpha", "title": "Alpha news"})
	mustCreate(t, e, map[string]any{"slug": "beta", "title": "Beta news"})
	mustCreate(t, e, map[string]any{"slug": "gamma", "title": "Gamma"})

	// Contains match on title.
	r := e.FindAll(ctx, "articles", map[string]any{"title": "news"}, nil, nil,
		[]string{"id", "title"})
	if !r.OK() {
		t.Fatalf("find_all failed: %s", r.Message)
	}
	rows := r.Data.([]map[string]any)
	if len(rows) != 2 || r.Meta.Count != 2 {
		t.Fatalf("expected 2 matches, got %d rows count=%d", len(rows), r.Meta.Count)
	}

	// Exact match on slug.
	r = e.FindAll(ctx, "articles", map[string]any{"slug": "alph"}, nil, nil, nil)
	if r.Meta.Count != 0 {
		t.Fatalf("expected exact slug match to miss, got %d", r.Meta.Count)
	}

	// Count disregards pagination.
	r = e.FindAll(ctx, "articles", nil, map[string]string{"id": "ASC"},
		&engine.Page{Limit: 1}, nil)
	rows = r.Data.([]map[string]any)
	if len(rows) != 1 || r.Meta.Count != 3 {
		t.Fatalf("expected 1 row with count=3, got %d rows count=%d", len(rows), r.Meta.Count)
	}

	// Unknown filter fields are dropped, not errors.
	r = e.FindAll(ctx, "articles", map[string]any{"nope": "x"}, nil, nil, nil)
	if !r.OK() || r.Meta.Count != 3 {
		t.Fatalf("expected unknown filter to be ignored, got %+v", r)
	}
}

func TestFindAllEmptyResult(t *testing.T) {
	e, _ := testEngine(t)

	r := e.FindAll(context.Background(), "articles", nil, nil, nil, nil)
	if !r.OK() {
		t.Fatalf("find_all failed: %s", r.Message)
	}
	rows, ok := r.Data.([]map[string]any)
	if !ok || rows == nil {
		t.Fatalf("expected a non-nil empty slice, got %T %v", r.Data, r.Data)
	}
	if r.Meta.Count != 0 {
		t.Fatalf("expected count=0, got %d", r.Meta.Count)
	}
}

func TestFindByID(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	row := mustCreate(t, e, map[string]any{"slug": "one", "title": "One"})
	id := toID(row["id"])

	r := e.FindByID(ctx, "articles", id, []string{"id", "slug"})
	if !r.OK() {
		t.Fatalf("find_by_id failed: %s", r.Message)
	}
	if r.Row()["slug"] != "one" {
		t.Fatalf("expected slug=one, got %v", r.Row())
	}

	r = e.FindByID(ctx, "articles", id+1000, nil)
	if r.ErrorCode != engine.CodeIDNotFound {
		t.Fatalf("expected %s, got %s", engine.CodeIDNotFound, r.ErrorCode)
	}
}

func TestFindOne(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	mustCreate(t, e, map[string]any{"slug": "findme", "title": "Find Me", "draft_notes": "wip"})

	r := e.FindOne(ctx, "articles", map[string]any{"slug": "findme"}, []string{"id", "title"})
	if !r.OK() {
		t.Fatalf("find_one failed: %s", r.Message)
	}
	if r.Row()["title"] != "Find Me" {
		t.Fatalf("expected title, got %v", r.Row())
	}

	r = e.FindOne(ctx, "articles", map[string]any{"slug": "absent"}, nil)
	if r.ErrorCode != engine.CodeDataNotFound {
		t.Fatalf("expected %s, got %s", engine.CodeDataNotFound, r.ErrorCode)
	}

	// Public find_one cannot project internal fields...
	r = e.FindOne(ctx, "articles", map[string]any{"slug": "findme"}, []string{"id", "draft_notes"})
	if _, ok := r.Row()["draft_notes"]; ok {
		t.Fatal("expected internal field to be stripped")
	}
	// ...the privileged variant can.
	r = e.FindOneInternal(ctx, "articles", map[string]any{"slug": "findme"}, []string{"id", "draft_notes"})
	if r.Row()["draft_notes"] != "wip" {
		t.Fatalf("expected privileged projection to include internal field, got %v", r.Row())
	}
}

func TestUpdate(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	row := mustCreate(t, e, map[string]any{"slug": "up", "title": "Before"})
	id := toID(row["id"])

	r := e.Update(ctx, "articles", id, map[string]any{"title": "After"}, nil,
		[]string{"id", "title"})
	if !r.OK() {
		t.Fatalf("update failed: %s %v", r.Message, r.FieldErrors)
	}
	if r.Row()["title"] != "After" {
		t.Fatalf("expected title=After, got %v", r.Row())
	}

	r = e.Update(ctx, "articles", id+1000, map[string]any{"title": "X"}, nil, nil)
	if r.ErrorCode != engine.CodeIDNotFound {
		t.Fatalf("expected %s, got %s", engine.CodeIDNotFound, r.ErrorCode)
	}

	r = e.Update(ctx, "articles", id, nil, nil, nil)
	if r.ErrorCode != engine.CodeValidationFailed {
		t.Fatalf("expected empty attributes to fail, got %s", r.ErrorCode)
	}

	// Update does not re-require fields absent from the write.
	r = e.Update(ctx, "articles", id, map[string]any{"body": "text"}, nil, nil)
	if !r.OK() {
		t.Fatalf("partial update failed: %s %v", r.Message, r.FieldErrors)
	}
}

func TestDeleteByID(t *testing.T) {
	e, s := testEngine(t)
	ctx := context.Background()

	row := mustCreate(t, e, map[string]any{"slug": "gone", "title": "Gone"})
	id := toID(row["id"])

	r := e.DeleteByID(ctx, "articles", id, []string{"id", "slug"})
	if !r.OK() {
		t.Fatalf("delete failed: %s", r.Message)
	}
	if r.Row()["slug"] != "gone" {
		t.Fatalf("expected the pre-delete row, got %v", r.Row())
	}

	// Soft delete: the row is still physically present, just tombstoned.
	raw, err := store.QueryRow(ctx, s.DB,
		"SELECT deleted_at FROM test_articles WHERE id = ?1", id)
	if err != nil {
		t.Fatalf("read tombstone: %v", err)
	}
	if raw["deleted_at"] == nil {
		t.Fatal("expected deleted_at to be set")
	}

	// Deleted rows are invisible to reads and re-deletes.
	if r := e.FindByID(ctx, "articles", id, nil); r.ErrorCode != engine.CodeIDNotFound {
		t.Fatalf("expected deleted row to be hidden, got %+v", r)
	}
	if r := e.FindAll(ctx, "articles", nil, nil, nil, nil); r.Meta.Count != 0 {
		t.Fatalf("expected empty listing, got count=%d", r.Meta.Count)
	}
	if r := e.DeleteByID(ctx, "articles", id, nil); r.ErrorCode != engine.CodeIDNotFound {
		t.Fatalf("expected re-delete to miss, got %+v", r)
	}
	if r := e.Update(ctx, "articles", id, map[string]any{"title": "Zombie"}, nil, nil); r.ErrorCode != engine.CodeIDNotFound {
		t.Fatalf("expected update of deleted row to miss, got %+v", r)
	}
}

// The cheap rejections must not touch the store at all: a nil store proves it.
func TestRejectionsNeedNoStore(t *testing.T) {
	reg := testRegistry(t)
	e := engine.New(nil, reg, engine.NewNormalizer(engine.Limits{}), engine.UniquePolicy{}, false)
	ctx := context.Background()

	if r := e.FindByID(ctx, "ghosts", 1, nil); r.ErrorCode != engine.CodeInvalidModel {
		t.Fatalf("expected %s, got %s", engine.CodeInvalidModel, r.ErrorCode)
	}
	for _, id := range []int64{0, -5} {
		if r := e.FindByID(ctx, "articles", id, nil); r.ErrorCode != engine.CodeInvalidID {
			t.Fatalf("id=%d: expected %s, got %s", id, engine.CodeInvalidID, r.ErrorCode)
		}
	}
	if r := e.DeleteByID(ctx, "articles", -1, nil); r.ErrorCode != engine.CodeInvalidID {
		t.Fatalf("expected %s, got %s", engine.CodeInvalidID, r.ErrorCode)
	}
	if r := e.Create(ctx, "articles", nil, nil, nil); r.ErrorCode != engine.CodeValidationFailed {
		t.Fatalf("expected %s, got %s", engine.CodeValidationFailed, r.ErrorCode)
	}
	if r := e.Update(ctx, "articles", 1, map[string]any{"bogus": "x"}, nil, nil); r.ErrorCode != engine.CodeValidationFailed {
		t.Fatalf("expected undeclared-only save set to fail, got %s", r.ErrorCode)
	}
	if r := e.ValidateUnique(ctx, "articles", "title", "x"); r.ErrorCode != engine.CodeValidationFailed {
		t.Fatalf("expected non-allow-listed field to fail, got %s", r.ErrorCode)
	}
}

func toID(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return -1
}
