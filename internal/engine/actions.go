package engine

import (
	"context"

	"lattice-backend/internal/bus"
)

// RegisterActions exposes every engine verb on the bus under the store:*
// patterns. This is the contract feature modules and transport adapters
// dispatch against; the payload field names are part of the wire contract.
func RegisterActions(b *bus.Bus, e *Engine) {
	b.MustHandle("store:create", func(ctx context.Context, p bus.Payload) any {
		return e.Create(ctx, p.String("model"), p.Map("attributes"), p.Strings("saveFields"), p.Strings("returnFields"))
	})

	b.MustHandle("store:find_all", func(ctx context.Context, p bus.Payload) any {
		return e.FindAll(ctx, p.String("model"), p.Map("where"), p.StringMap("order"), PageFrom(p), p.Strings("returnFields"))
	})

	b.MustHandle("store:find_by_id", func(ctx context.Context, p bus.Payload) any {
		id, _ := p.Int64("id")
		return e.FindByID(ctx, p.String("model"), id, p.Strings("returnFields"))
	})

	b.MustHandle("store:find_one", func(ctx context.Context, p bus.Payload) any {
		return e.FindOne(ctx, p.String("model"), p.Map("where"), p.Strings("returnFields"))
	})

	b.MustHandle("store:update", func(ctx context.Context, p bus.Payload) any {
		id, _ := p.Int64("id")
		return e.Update(ctx, p.String("model"), id, p.Map("attributes"), p.Strings("saveFields"), p.Strings("returnFields"))
	})

	b.MustHandle("store:delete_by_id", func(ctx context.Context, p bus.Payload) any {
		id, _ := p.Int64("id")
		return e.DeleteByID(ctx, p.String("model"), id, p.Strings("returnFields"))
	})

	b.MustHandle("store:validate_unique", func(ctx context.Context, p bus.Payload) any {
		return e.ValidateUnique(ctx, p.String("model"), p.String("field"), p["value"])
	})
}

// PageFrom reads the optional pagination object off a payload. Garbage
// values come out as zero and fall to the normalizer's defaults.
func PageFrom(p bus.Payload) *Page {
	raw := p.Map("pagination")
	if raw == nil {
		return nil
	}
	sub := bus.Payload(raw)
	page := &Page{}
	if v, ok := sub.Int64("offset"); ok {
		page.Offset = int(v)
	}
	if v, ok := sub.Int64("limit"); ok {
		page.Limit = int(v)
	}
	return page
}
