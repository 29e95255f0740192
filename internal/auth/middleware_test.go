package auth

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func middlewareApp(t *testing.T, secret string) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(Middleware(secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		id := GetIdentity(c)
		if id == nil {
			t.Fatal("expected identity on request")
		}
		return c.JSON(fiber.Map{"id": id.UserID, "username": id.Username})
	})
	return app
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	app := middlewareApp(t, "secret")
	req, _ := http.NewRequest("GET", "/whoami", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	app := middlewareApp(t, "secret")
	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	app := middlewareApp(t, "secret")
	token, err := GenerateAccessToken(7, "carol", "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
