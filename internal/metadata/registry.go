package metadata

import (
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var (
	ErrDuplicateModel = errors.New("model already registered")
	ErrModelNotFound  = errors.New("model not registered")
	ErrFrozen         = errors.New("registry is frozen")
)

type checkProgram struct {
	program *vm.Program
	message string
}

// Registry holds every logical model a deployment has declared. Feature
// modules register their models during composition; after Freeze no further
// mutation is possible and lookups are lock-free in practice (read lock only).
type Registry struct {
	mu     sync.RWMutex
	prefix string
	models map[string]*Model
	frozen bool
}

func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: prefix,
		models: make(map[string]*Model),
	}
}

// Register validates a model descriptor, derives its table name from the
// configured prefix, compiles its check expressions and adds it to the
// registry. Duplicate logical names are rejected so schema drift between two
// modules claiming the same model fails at startup instead of silently.
func (r *Registry) Register(m *Model) error {
	if err := validateModel(m); err != nil {
		return fmt.Errorf("register model: %w", err)
	}

	checks := make(map[string]*checkProgram)
	for _, f := range m.Fields {
		if f.Check == "" {
			continue
		}
		prog, err := expr.Compile(f.Check, expr.AsBool())
		if err != nil {
			return fmt.Errorf("register model %q: compile check for field %q: %w", m.Name, f.Name, err)
		}
		msg := f.CheckMsg
		if msg == "" {
			msg = fmt.Sprintf("The %s value you entered is not valid.", f.Name)
		}
		checks[f.Name] = &checkProgram{program: prog, message: msg}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register model %q: %w", m.Name, ErrFrozen)
	}
	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("register model %q: %w", m.Name, ErrDuplicateModel)
	}

	m.Table = r.prefix + "_" + m.Name
	m.checks = checks
	r.models[m.Name] = m
	return nil
}

// Resolve returns the model registered under the logical name. Every engine
// operation starts here; a miss short-circuits the operation before any
// store access.
func (r *Registry) Resolve(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("model %q: %w", name, ErrModelNotFound)
	}
	return m, nil
}

// All returns every registered model.
func (r *Registry) All() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	return models
}

// Freeze marks the end of module composition. Registration attempts after
// this point fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// RunCheck evaluates the compiled check expression for a field against a
// candidate value. It returns ok=true when the field has no check or the
// check passes, otherwise false with the field-scoped message.
func (m *Model) RunCheck(field string, value any) (bool, string) {
	c, ok := m.checks[field]
	if !ok {
		return true, ""
	}
	out, err := expr.Run(c.program, map[string]any{"value": value})
	if err != nil {
		return false, c.message
	}
	pass, _ := out.(bool)
	if !pass {
		return false, c.message
	}
	return true, ""
}

func validateModel(m *Model) error {
	if m == nil || m.Name == "" {
		return errors.New("model name must not be blank")
	}
	if len(m.Fields) == 0 {
		return fmt.Errorf("model %q declares no fields", m.Name)
	}

	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		switch f.Name {
		case "":
			return fmt.Errorf("model %q declares a field with no name", m.Name)
		case ColID, ColCreatedAt, ColUpdatedAt, ColDeletedAt:
			return fmt.Errorf("model %q declares reserved field %q", m.Name, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("model %q declares field %q twice", m.Name, f.Name)
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeString, TypeText, TypeInt, TypeBigint, TypeBool, TypeTime:
		default:
			return fmt.Errorf("model %q field %q has unknown type %q", m.Name, f.Name, f.Type)
		}
	}

	for field, policy := range m.Match {
		if !seen[field] {
			return fmt.Errorf("model %q match policy names unknown field %q", m.Name, field)
		}
		if policy != MatchExact && policy != MatchContains {
			return fmt.Errorf("model %q field %q has unknown match policy %q", m.Name, field, policy)
		}
	}

	for _, field := range m.UniqueCheck {
		if !seen[field] {
			return fmt.Errorf("model %q unique-check list names unknown field %q", m.Name, field)
		}
	}

	return nil
}
