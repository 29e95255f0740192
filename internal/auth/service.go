package auth

import (
	"context"
	"strconv"

	"lattice-backend/internal/bus"
	"lattice-backend/internal/engine"
)

// statusActive mirrors the user module's active account status.
const statusActive = 1

// Service authenticates accounts stored behind the engine. It reads the
// password hash through the engine's privileged projection; nothing on the
// wire can reach that field.
type Service struct {
	engine *engine.Engine
	secret string
	model  string
}

func NewService(e *engine.Engine, secret, model string) *Service {
	return &Service{engine: e, secret: secret, model: model}
}

// RegisterActions puts the auth services on the bus.
func (s *Service) RegisterActions(b *bus.Bus) {
	b.MustHandle("auth:login", func(ctx context.Context, p bus.Payload) any {
		return s.Login(ctx, p.String("username"), p.String("password"))
	})
	b.MustHandle("auth:verify", func(ctx context.Context, p bus.Payload) any {
		return s.Verify(ctx, p.String("token"))
	})
}

// Login checks the credentials and issues an access token. Lookup misses and
// bad passwords report the same message, so callers cannot probe which
// usernames exist.
func (s *Service) Login(ctx context.Context, username, password string) engine.Result {
	if username == "" || password == "" {
		return engine.Fail(engine.CodeValidationFailed, "Username and password can not be blank.")
	}

	r := s.engine.FindOneInternal(ctx, s.model,
		map[string]any{"username": username},
		[]string{"id", "username", "email", "status", "password"})
	if !r.OK() {
		if r.ErrorCode == engine.CodeDataNotFound {
			return engine.Fail(engine.CodeValidationFailed, "Invalid username or password.")
		}
		return r
	}

	row := r.Row()
	hash, _ := row["password"].(string)
	if !CheckPassword(password, hash) {
		return engine.Fail(engine.CodeValidationFailed, "Invalid username or password.")
	}
	if toInt64(row["status"]) != statusActive {
		return engine.Fail(engine.CodeValidationFailed, "This account is not active.")
	}

	token, err := GenerateAccessToken(toInt64(row["id"]), username, s.secret)
	if err != nil {
		return engine.Fail(engine.CodeSystem, "An error was encountered.")
	}

	return engine.Success(map[string]any{
		"token": token,
		"user": map[string]any{
			"id":       row["id"],
			"username": row["username"],
			"email":    row["email"],
		},
	}, 1)
}

// Verify parses an access token and returns its subject.
func (s *Service) Verify(_ context.Context, token string) engine.Result {
	claims, err := ParseAccessToken(token, s.secret)
	if err != nil {
		return engine.Fail(engine.CodeValidationFailed, "Invalid or expired token.")
	}
	id, _ := strconv.ParseInt(claims.Subject, 10, 64)
	return engine.Success(map[string]any{"id": id, "username": claims.Username}, 1)
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
