package web

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"lattice-backend/internal/bus"
	"lattice-backend/internal/engine"
)

// Register mounts the HTTP adapter: every route builds a bus payload,
// dispatches, and serializes the Result as-is. Feature modules that
// registered a <model>:<verb> pattern shadow the generic store:* route for
// their model; everything else goes straight to the engine.
func Register(app *fiber.App, b *bus.Bus, authMW fiber.Handler) {
	app.Use(func(c *fiber.Ctx) error {
		ctx, id := bus.WithRequestID(c.UserContext())
		c.SetUserContext(ctx)
		c.Locals("request_id", id)
		return c.Next()
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/auth/login", func(c *fiber.Ctx) error {
		var body map[string]any
		if err := c.BodyParser(&body); err != nil {
			return badPayload(c)
		}
		return respond(c, b, "auth:login", bus.Payload(body), fiber.StatusOK)
	})

	api := app.Group("/api", authMW)

	api.Get("/:model", func(c *fiber.Ctx) error {
		p := bus.Payload{
			"where":        whereFromQuery(c),
			"order":        orderFromQuery(c),
			"pagination":   paginationFromQuery(c),
			"returnFields": fieldsFromQuery(c),
		}
		return dispatchVerb(c, b, "find_all", p, fiber.StatusOK)
	})

	api.Post("/:model/validate_unique", func(c *fiber.Ctx) error {
		var body map[string]any
		if err := c.BodyParser(&body); err != nil {
			return badPayload(c)
		}
		return dispatchVerb(c, b, "validate_unique", bus.Payload(body), fiber.StatusOK)
	})

	api.Get("/:model/:id", func(c *fiber.Ctx) error {
		p := bus.Payload{
			"id":           idFromPath(c),
			"returnFields": fieldsFromQuery(c),
		}
		return dispatchVerb(c, b, "find_by_id", p, fiber.StatusOK)
	})

	api.Post("/:model", func(c *fiber.Ctx) error {
		p, ok := writePayload(c)
		if !ok {
			return badPayload(c)
		}
		return dispatchVerb(c, b, "create", p, fiber.StatusCreated)
	})

	api.Put("/:model/:id", func(c *fiber.Ctx) error {
		p, ok := writePayload(c)
		if !ok {
			return badPayload(c)
		}
		p["id"] = idFromPath(c)
		return dispatchVerb(c, b, "update", p, fiber.StatusOK)
	})

	api.Delete("/:model/:id", func(c *fiber.Ctx) error {
		p := bus.Payload{
			"id":           idFromPath(c),
			"returnFields": fieldsFromQuery(c),
		}
		return dispatchVerb(c, b, "delete_by_id", p, fiber.StatusOK)
	})
}

func dispatchVerb(c *fiber.Ctx, b *bus.Bus, verb string, p bus.Payload, okStatus int) error {
	model := c.Params("model")
	pattern := model + ":" + verb
	if !b.Has(pattern) {
		pattern = "store:" + verb
	}
	p["model"] = model
	return respond(c, b, pattern, p, okStatus)
}

func respond(c *fiber.Ctx, b *bus.Bus, pattern string, p bus.Payload, okStatus int) error {
	res, err := b.Dispatch(c.UserContext(), pattern, p)
	if err != nil {
		log.Printf("ERROR [%v] dispatch %s: %v", c.Locals("request_id"), pattern, err)
		return c.Status(fiber.StatusInternalServerError).JSON(engine.Fail(engine.CodeSystem, "An error was encountered."))
	}

	r, ok := res.(engine.Result)
	if !ok {
		log.Printf("ERROR [%v] dispatch %s: unexpected result type %T", c.Locals("request_id"), pattern, res)
		return c.Status(fiber.StatusInternalServerError).JSON(engine.Fail(engine.CodeSystem, "An error was encountered."))
	}

	if !r.OK() {
		if cause := r.Cause(); cause != nil {
			log.Printf("ERROR [%v] %s: %v", c.Locals("request_id"), pattern, cause)
		}
		return c.Status(r.ErrorCode.HTTPStatus()).JSON(r)
	}
	return c.Status(okStatus).JSON(r)
}

// writePayload reads a write body. The engine contract shape
// {attributes, saveFields, returnFields} is accepted directly; a bare
// object is treated as the attributes for convenience.
func writePayload(c *fiber.Ctx) (bus.Payload, bool) {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return nil, false
	}
	p := bus.Payload(body)
	if p.Map("attributes") == nil {
		p = bus.Payload{"attributes": body}
	}
	if rf := fieldsFromQuery(c); rf != nil {
		p["returnFields"] = rf
	}
	return p, true
}

func idFromPath(c *fiber.Ctx) int64 {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0 // engine reports ERROR_INVALID_ID
	}
	return id
}

// whereFromQuery collects filter[field]=value parameters.
func whereFromQuery(c *fiber.Ctx) map[string]any {
	where := make(map[string]any)
	for key, val := range c.Queries() {
		if strings.HasPrefix(key, "filter[") && strings.HasSuffix(key, "]") {
			where[key[7:len(key)-1]] = val
		}
	}
	return where
}

// orderFromQuery parses sort=-created_at,username into a field->direction
// map. Values stay as any so payload accessors see the same shape a JSON
// body would decode to.
func orderFromQuery(c *fiber.Ctx) map[string]any {
	sortParam := c.Query("sort")
	if sortParam == "" {
		return nil
	}
	order := make(map[string]any)
	for _, part := range strings.Split(sortParam, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			order[part[1:]] = "DESC"
		} else {
			order[part] = "ASC"
		}
	}
	return order
}

func paginationFromQuery(c *fiber.Ctx) map[string]any {
	page := make(map[string]any)
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		page["limit"] = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil {
		page["offset"] = v
	}
	if len(page) == 0 {
		return nil
	}
	return page
}

func fieldsFromQuery(c *fiber.Ctx) []string {
	raw := c.Query("fields")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func badPayload(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(
		engine.Fail(engine.CodeValidationFailed, "Invalid JSON body."))
}
