package user

import (
	"context"

	"lattice-backend/internal/auth"
	"lattice-backend/internal/bus"
	"lattice-backend/internal/engine"
)

// writable lists the attributes callers may submit on a write. Everything
// else in the payload is discarded before it reaches the engine.
var writable = []string{"username", "email", "password", "status", "first_name", "last_name"}

// Service exposes the user feature operations over the bus. It is a thin
// layer over the engine: attribute allow-listing, password hashing and
// uniqueness pre-flights happen here, persistence does not.
type Service struct {
	engine *engine.Engine
}

func NewService(e *engine.Engine) *Service {
	return &Service{engine: e}
}

// RegisterActions puts the user services on the bus. The user:* patterns
// shadow the generic store:* routes for this model at the transport layer.
func (s *Service) RegisterActions(b *bus.Bus) {
	b.MustHandle("user:create", func(ctx context.Context, p bus.Payload) any {
		return s.Create(ctx, p.Map("attributes"), returnFieldsOr(p))
	})
	b.MustHandle("user:find_all", func(ctx context.Context, p bus.Payload) any {
		return s.engine.FindAll(ctx, ModelName, p.Map("where"), p.StringMap("order"), engine.PageFrom(p), returnFieldsOr(p))
	})
	b.MustHandle("user:find_by_id", func(ctx context.Context, p bus.Payload) any {
		id, _ := p.Int64("id")
		return s.engine.FindByID(ctx, ModelName, id, returnFieldsOr(p))
	})
	b.MustHandle("user:update", func(ctx context.Context, p bus.Payload) any {
		id, _ := p.Int64("id")
		return s.Update(ctx, id, p.Map("attributes"), returnFieldsOr(p))
	})
	b.MustHandle("user:delete_by_id", func(ctx context.Context, p bus.Payload) any {
		id, _ := p.Int64("id")
		return s.engine.DeleteByID(ctx, ModelName, id, returnFieldsOr(p))
	})
	b.MustHandle("user:validate_unique", func(ctx context.Context, p bus.Payload) any {
		return s.engine.ValidateUnique(ctx, ModelName, p.String("field"), p["value"])
	})
}

// Create inserts a user. Attributes are allow-listed, username and email get
// an advisory uniqueness pre-flight (the store's unique indexes remain the
// authority), and the password is bcrypt-hashed before it reaches the engine.
func (s *Service) Create(ctx context.Context, attributes map[string]any, returnFields []string) engine.Result {
	attrs := prepareAttributes(attributes)

	fieldErrors := make(map[string]string)
	for _, field := range []string{"username", "email"} {
		v, ok := attrs[field]
		if !ok {
			continue
		}
		if r := s.engine.ValidateUnique(ctx, ModelName, field, v); !r.OK() {
			for f, msg := range r.FieldErrors {
				fieldErrors[f] = msg
			}
		}
	}
	if len(fieldErrors) > 0 {
		return engine.FailFields(engine.CodeValidationFailed, "Validation was failed.", fieldErrors)
	}

	if fail := hashPassword(attrs); fail != nil {
		return *fail
	}

	return s.engine.Create(ctx, ModelName, attrs, nil, returnFields)
}

// Update writes the allow-listed attributes of an existing user, hashing the
// password when the caller changes it.
func (s *Service) Update(ctx context.Context, id int64, attributes map[string]any, returnFields []string) engine.Result {
	attrs := prepareAttributes(attributes)
	if fail := hashPassword(attrs); fail != nil {
		return *fail
	}
	return s.engine.Update(ctx, ModelName, id, attrs, nil, returnFields)
}

// returnFieldsOr resolves the projection for a user action: the caller's
// returnFields when given, the full public field set otherwise. The engine's
// bare default of just the id is too narrow for the user endpoints.
func returnFieldsOr(p bus.Payload) []string {
	if rf := p.Strings("returnFields"); len(rf) > 0 {
		return rf
	}
	return PublicFields
}

// prepareAttributes keeps only writable attributes and drops blank names so
// the schema defaults apply instead.
func prepareAttributes(attributes map[string]any) map[string]any {
	attrs := make(map[string]any, len(attributes))
	for _, f := range writable {
		if v, ok := attributes[f]; ok {
			attrs[f] = v
		}
	}
	for _, f := range []string{"first_name", "last_name"} {
		if s, ok := attrs[f].(string); ok && s == "" {
			delete(attrs, f)
		}
	}
	return attrs
}

// hashPassword replaces a plaintext password in attrs with its bcrypt hash.
// Returns a failure Result for an unusable password, nil otherwise.
func hashPassword(attrs map[string]any) *engine.Result {
	raw, ok := attrs["password"]
	if !ok {
		return nil
	}
	plain, isStr := raw.(string)
	if !isStr || len(plain) < 6 {
		r := engine.FailFields(engine.CodeValidationFailed, "Validation was failed.", map[string]string{
			"password": "Password must be a string of at least 6 characters.",
		})
		return &r
	}
	hash, err := auth.HashPassword(plain)
	if err != nil {
		r := engine.Fail(engine.CodeSystem, "An error was encountered.")
		return &r
	}
	attrs["password"] = hash
	return nil
}
