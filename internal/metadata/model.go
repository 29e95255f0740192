package metadata

// Field types understood by the engine and the store dialects.
const (
	TypeString = "string"
	TypeText   = "text"
	TypeInt    = "int"
	TypeBigint = "bigint"
	TypeBool   = "bool"
	TypeTime   = "time"
)

// Match policies for caller-supplied filter conditions.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
)

// Columns the store manages on every table. They are never declared in a
// model's field list.
const (
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
	ColDeletedAt = "deleted_at"
)

type Field struct {
	Name     string
	Type     string
	Required bool
	Unique   bool
	Default  any
	MaxLen   int
	Internal bool // excluded from public projections (e.g. password hashes)

	// Check is an optional expr-lang expression over {"value": v} that must
	// evaluate to true for the value to be accepted. CheckMsg is the
	// field-scoped message reported when it does not.
	Check    string
	CheckMsg string
}

// Model is the descriptor for one logical model. It is registered once at
// startup and immutable afterwards; Table is derived by the registry from
// the configured prefix.
type Model struct {
	Name        string
	Table       string
	Fields      []Field
	SoftDelete  bool
	Match       map[string]string // field -> MatchExact | MatchContains
	UniqueCheck []string          // fields the uniqueness validator may probe

	checks map[string]*checkProgram
}

// GetField returns a pointer to the declared field with the given name, or nil.
func (m *Model) GetField(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the model declares a field with the given name.
func (m *Model) HasField(name string) bool {
	return m.GetField(name) != nil
}

// PublicFields returns the id column plus every declared field not marked
// internal, in declaration order. This is the projection allow-list.
func (m *Model) PublicFields() []string {
	fields := []string{ColID}
	for _, f := range m.Fields {
		if !f.Internal {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

// DeclaredFields returns the id column plus every declared field, internal
// ones included. Only privileged callers project against this list.
func (m *Model) DeclaredFields() []string {
	fields := []string{ColID}
	for _, f := range m.Fields {
		fields = append(fields, f.Name)
	}
	return fields
}

// SortableFields returns the fields accepted in an order clause: everything
// public plus the managed timestamp columns.
func (m *Model) SortableFields() []string {
	return append(m.PublicFields(), ColCreatedAt, ColUpdatedAt)
}

// WritableFields returns the declared field names that a write may persist.
// The managed columns are excluded; the engine sets those itself.
func (m *Model) WritableFields() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// IsWritable returns true if the named field may appear in saveFields.
func (m *Model) IsWritable(name string) bool {
	return m.HasField(name)
}

// MatchFor returns the filter policy for a field, defaulting to exact match.
func (m *Model) MatchFor(field string) string {
	if p, ok := m.Match[field]; ok {
		return p
	}
	return MatchExact
}

// AllowsUniqueCheck returns true if the field is on the uniqueness-probe
// allow-list.
func (m *Model) AllowsUniqueCheck(field string) bool {
	return contains(m.UniqueCheck, field)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
