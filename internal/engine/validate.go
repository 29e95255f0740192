package engine

import (
	"fmt"
	"sort"
	"time"

	"lattice-backend/internal/metadata"
)

// normalizeSaveFields resolves the effective save list for a write: the
// caller's saveFields when given, otherwise the attribute keys. The engine
// never widens the list — allow-listing which fields are safe to persist is
// the caller's responsibility — but it does drop names the model never
// declared so they cannot reach the store.
func normalizeSaveFields(m *metadata.Model, attributes map[string]any, saveFields []string) []string {
	if len(saveFields) == 0 {
		saveFields = make([]string, 0, len(attributes))
		for k := range attributes {
			saveFields = append(saveFields, k)
		}
		sort.Strings(saveFields)
	}

	seen := make(map[string]bool, len(saveFields))
	var out []string
	for _, f := range saveFields {
		if seen[f] || !m.IsWritable(f) {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// validateWrite checks the attributes a write wants to persist against the
// model schema: required fields (create only), value kinds, length caps and
// the model's compiled check expressions. Returns per-field messages, empty
// on success.
func validateWrite(m *metadata.Model, attributes map[string]any, saveFields []string, isCreate bool) map[string]string {
	errs := make(map[string]string)

	if isCreate {
		for _, f := range m.Fields {
			if !f.Required || f.Default != nil {
				continue
			}
			if v, ok := attributes[f.Name]; !ok || isBlank(v) {
				errs[f.Name] = fmt.Sprintf("The %s field can not be blank.", f.Name)
			}
		}
	}

	for _, name := range saveFields {
		v, ok := attributes[name]
		if !ok {
			continue
		}
		f := m.GetField(name)
		if f == nil {
			continue
		}
		if _, dup := errs[name]; dup {
			continue
		}

		if msg := checkKind(f, v); msg != "" {
			errs[name] = msg
			continue
		}
		if f.MaxLen > 0 {
			if s, isStr := v.(string); isStr && len(s) > f.MaxLen {
				errs[name] = fmt.Sprintf("The %s value is too long (maximum is %d characters).", name, f.MaxLen)
				continue
			}
		}
		if ok, msg := m.RunCheck(name, v); !ok {
			errs[name] = msg
		}
	}

	return errs
}

func checkKind(f *metadata.Field, v any) string {
	if v == nil {
		return ""
	}
	switch f.Type {
	case metadata.TypeString, metadata.TypeText:
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("The %s value must be a string.", f.Name)
		}
	case metadata.TypeInt, metadata.TypeBigint:
		switch n := v.(type) {
		case int, int64:
		case float64:
			if n != float64(int64(n)) {
				return fmt.Sprintf("The %s value must be an integer.", f.Name)
			}
		default:
			return fmt.Sprintf("The %s value must be an integer.", f.Name)
		}
	case metadata.TypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("The %s value must be a boolean.", f.Name)
		}
	case metadata.TypeTime:
		switch v.(type) {
		case time.Time, string:
		default:
			return fmt.Sprintf("The %s value must be a timestamp.", f.Name)
		}
	}
	return ""
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
