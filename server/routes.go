package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/engine"
	"github.com/meikuraledutech/flow/hclscript"
)

// server holds what the routes need.
type server struct {
	store    flow.Store
	adapters flow.AdapterFactory
	http     flow.HTTPClient
	logger   *slog.Logger
	timeout  time.Duration
}

// storeError maps a store or validation error onto a response.
func storeError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, flow.ErrCycleDetected):
		return c.Status(422).JSON(fiber.Map{"error": "cycle detected"})
	case errors.Is(err, flow.ErrGraphNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
	case errors.Is(err, flow.ErrNodeNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "node not found"})
	case errors.Is(err, flow.ErrEdgeNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "edge not found"})
	case errors.Is(err, flow.ErrUnknownNodeType),
		errors.Is(err, flow.ErrMissingEntrypoint),
		errors.Is(err, flow.ErrDuplicateEntrypoint),
		errors.Is(err, flow.ErrDuplicateErrorHandler),
		errors.Is(err, engine.ErrInvalidGraph):
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

func newApp(s *server) *fiber.App {
	// Params and bodies outlive the handler in the store.
	app := fiber.New(fiber.Config{Immutable: true})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := s.store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := s.store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Graph (bulk) ──────────────────────────────────────────────────
	app.Post("/graphs/validate", func(c fiber.Ctx) error {
		var g flow.Graph
		if err := c.Bind().JSON(&g); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := g.Prepare(); err != nil {
			return c.Status(422).JSON(fiber.Map{"error": err.Error()})
		}
		if err := engine.Validate(&g); err != nil {
			return storeError(c, err)
		}
		return c.JSON(fiber.Map{"valid": true})
	})

	app.Post("/graphs", func(c fiber.Ctx) error {
		var g flow.Graph
		if err := c.Bind().JSON(&g); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := g.Prepare(); err != nil {
			return c.Status(422).JSON(fiber.Map{"error": err.Error()})
		}
		if err := engine.Validate(&g); err != nil {
			return storeError(c, err)
		}
		result, err := s.store.CreateGraph(c.Context(), &g)
		if err != nil {
			return storeError(c, err)
		}
		return c.Status(201).JSON(result)
	})

	app.Get("/graphs/:id", func(c fiber.Ctx) error {
		g, err := s.store.GetGraph(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(g)
	})

	app.Delete("/graphs/:id", func(c fiber.Ctx) error {
		if err := s.store.DeleteGraph(c.Context(), c.Params("id")); err != nil {
			return storeError(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Invocation ────────────────────────────────────────────────────
	app.Post("/graphs/:id/run", s.run)

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/graphs/:id/nodes", func(c fiber.Ctx) error {
		var node flow.Node
		if err := c.Bind().JSON(&node); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		id, err := s.store.AddNode(c.Context(), c.Params("id"), &node)
		if err != nil {
			return storeError(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"id": id})
	})

	app.Get("/graphs/:id/nodes", func(c fiber.Ctx) error {
		nodes, err := s.store.ListNodes(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(nodes)
	})

	app.Get("/nodes/:id", func(c fiber.Ctx) error {
		n, err := s.store.GetNode(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(n)
	})

	app.Put("/nodes/:id", func(c fiber.Ctx) error {
		var node flow.Node
		if err := c.Bind().JSON(&node); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		node.ID = c.Params("id")
		if err := s.store.UpdateNode(c.Context(), &node); err != nil {
			return storeError(c, err)
		}
		return c.SendStatus(204)
	})

	app.Delete("/nodes/:id", func(c fiber.Ctx) error {
		if err := s.store.DeleteNode(c.Context(), c.Params("id")); err != nil {
			return storeError(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Edges ─────────────────────────────────────────────────────────
	app.Post("/graphs/:id/edges", func(c fiber.Ctx) error {
		var edge flow.Edge
		if err := c.Bind().JSON(&edge); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		id, err := s.store.AddEdge(c.Context(), c.Params("id"), &edge)
		if err != nil {
			return storeError(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"id": id})
	})

	app.Get("/graphs/:id/edges", func(c fiber.Ctx) error {
		edges, err := s.store.ListEdges(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(edges)
	})

	app.Get("/edges/:id", func(c fiber.Ctx) error {
		e, err := s.store.GetEdge(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(e)
	})

	app.Put("/edges/:id", func(c fiber.Ctx) error {
		var edge flow.Edge
		if err := c.Bind().JSON(&edge); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		edge.ID = c.Params("id")
		if err := s.store.UpdateEdge(c.Context(), &edge); err != nil {
			return storeError(c, err)
		}
		return c.SendStatus(204)
	})

	app.Delete("/edges/:id", func(c fiber.Ctx) error {
		if err := s.store.DeleteEdge(c.Context(), c.Params("id")); err != nil {
			return storeError(c, err)
		}
		return c.SendStatus(204)
	})

	return app
}

// run invokes a stored graph with the request body as input and maps the
// result onto the response. Fatal outputs become 500, the invocation
// deadline 504.
func (s *server) run(c fiber.Ctx) error {
	g, err := s.store.GetGraph(c.Context(), c.Params("id"))
	if err != nil {
		return storeError(c, err)
	}

	req := newRequest(c)
	ec := flow.NewExecutionContext(s.timeout)
	ec.Logger = s.logger.With(slog.String("graph_id", g.ID))
	ec.Observer = flow.NewLoggingObserver(ec.Logger)
	ec.Request = req
	ec.Script = hclscript.New(hclscript.WithVariables(ec.Vars), hclscript.WithRequest(req))
	ec.Adapters = s.adapters
	ec.HTTP = s.http

	out, err := engine.Run(c.Context(), g, ec, req.Body())
	switch {
	case errors.Is(err, flow.ErrExecutionTimeout):
		return c.Status(504).JSON(fiber.Map{"error": out.Error})
	case err != nil:
		ec.Log().Error("run failed", slog.Any("error", err))
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	case out.IsFatal():
		return c.Status(500).JSON(fiber.Map{"error": out.Error})
	}

	if res, ok := out.Output.(flow.HTTPResponse); ok {
		return c.Status(res.HTTPCode).JSON(res.Body)
	}
	return c.JSON(out.Output)
}
