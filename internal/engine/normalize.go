package engine

import (
	"sort"
	"strings"

	"lattice-backend/internal/metadata"
)

// Fallbacks when the deployment config leaves the limits unset.
const (
	fallbackDefaultLimit = 20
	fallbackMaxLimit     = 100
)

// Limits bounds caller-supplied pagination. Passed in explicitly from
// config; the normalizer reads nothing ambient.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

// Normalizer turns untrusted caller-supplied query parameters into safe,
// bounded values. Every method is total: malformed input falls back to a
// safe default instead of failing, so read endpoints stay available under
// hostile parameters.
type Normalizer struct {
	limits Limits
}

func NewNormalizer(l Limits) Normalizer {
	if l.MaxLimit <= 0 {
		l.MaxLimit = fallbackMaxLimit
	}
	if l.DefaultLimit <= 0 {
		l.DefaultLimit = fallbackDefaultLimit
	}
	if l.DefaultLimit > l.MaxLimit {
		l.DefaultLimit = l.MaxLimit
	}
	return Normalizer{limits: l}
}

type Page struct {
	Offset int
	Limit  int
}

// Pagination returns a page with offset >= 0 and 0 < limit <= MaxLimit.
// A nil page or non-positive limit falls back to the configured default;
// an oversized limit is clamped.
func (n Normalizer) Pagination(p *Page) Page {
	out := Page{Offset: 0, Limit: n.limits.DefaultLimit}
	if p == nil {
		return out
	}
	if p.Offset > 0 {
		out.Offset = p.Offset
	}
	if p.Limit > 0 {
		out.Limit = p.Limit
	}
	if out.Limit > n.limits.MaxLimit {
		out.Limit = n.limits.MaxLimit
	}
	return out
}

type OrderClause struct {
	Field string
	Dir   string // ASC or DESC
}

// Order builds the ordered sort list from a requested field->direction map.
// Unknown fields are dropped rather than passed through to the store;
// directions are case-normalized. When nothing valid remains the result is
// the stable default [(id, DESC)]. Fields are visited in sorted name order
// so the output is deterministic for a given request.
func (n Normalizer) Order(requested map[string]string, m *metadata.Model) []OrderClause {
	sortable := m.SortableFields()

	fields := make([]string, 0, len(requested))
	for f := range requested {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []OrderClause
	for _, f := range fields {
		if !fieldIn(f, sortable) {
			continue
		}
		dir := strings.ToUpper(requested[f])
		if dir != "ASC" && dir != "DESC" {
			continue
		}
		out = append(out, OrderClause{Field: f, Dir: dir})
	}

	if len(out) == 0 {
		return []OrderClause{{Field: metadata.ColID, Dir: "DESC"}}
	}
	return out
}

// Projection intersects the requested fields with the model's public fields,
// deduplicates preserving request order, and defaults to just the id column.
func (n Normalizer) Projection(requested []string, m *metadata.Model) []string {
	return project(requested, m.PublicFields())
}

// PrivilegedProjection is Projection over all declared fields, internal ones
// included. Only trusted in-process callers (e.g. the auth module reading a
// password hash) use this; nothing reachable from the wire does.
func (n Normalizer) PrivilegedProjection(requested []string, m *metadata.Model) []string {
	return project(requested, m.DeclaredFields())
}

func project(requested, allowed []string) []string {
	if len(requested) == 0 {
		return []string{metadata.ColID}
	}
	seen := make(map[string]bool, len(requested))
	var out []string
	for _, f := range requested {
		if seen[f] || !fieldIn(f, allowed) {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return []string{metadata.ColID}
	}
	return out
}

type WhereClause struct {
	Field    string
	Contains bool // partial match (LIKE) instead of exact equality
	Value    any
}

// Filter classifies caller-supplied conditions by the model's match policy.
// Fields outside the public allow-list are dropped, as is any value that is
// neither a string nor a number. Clauses come out in sorted field order.
func (n Normalizer) Filter(requested map[string]any, m *metadata.Model) []WhereClause {
	public := m.PublicFields()

	fields := make([]string, 0, len(requested))
	for f := range requested {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []WhereClause
	for _, f := range fields {
		if !fieldIn(f, public) {
			continue
		}
		v := requested[f]
		switch v.(type) {
		case string, int, int64, float64:
		default:
			continue
		}
		out = append(out, WhereClause{
			Field:    f,
			Contains: m.MatchFor(f) == metadata.MatchContains,
			Value:    v,
		})
	}
	return out
}

func fieldIn(field string, list []string) bool {
	for _, f := range list {
		if f == field {
			return true
		}
	}
	return false
}
