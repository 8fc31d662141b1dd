package main

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/flow"
)

// request exposes an incoming fiber request to an invocation. It is only
// valid while the handler that created it runs.
type request struct {
	c       fiber.Ctx
	headers map[string]string
	query   map[string]string
	params  map[string]string
	cookies map[string]string
	body    any
}

var _ flow.Request = (*request)(nil)

func newRequest(c fiber.Ctx) *request {
	r := &request{
		c:       c,
		headers: make(map[string]string),
		query:   make(map[string]string),
		params:  make(map[string]string),
		cookies: make(map[string]string),
	}
	for name, values := range c.GetReqHeaders() {
		r.headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	for k, v := range c.Queries() {
		r.query[k] = v
	}
	for _, name := range c.Route().Params {
		r.params[name] = c.Params(name)
	}
	c.Request().Header.VisitAllCookie(func(key, value []byte) {
		r.cookies[string(key)] = string(value)
	})

	if raw := c.Body(); len(raw) > 0 {
		var body any
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
		r.body = body
	}
	return r
}

func (r *request) Headers() map[string]string { return r.headers }
func (r *request) Query() map[string]string   { return r.query }
func (r *request) Params() map[string]string  { return r.params }
func (r *request) Cookies() map[string]string { return r.cookies }
func (r *request) Body() any                  { return r.body }

func (r *request) SetHeader(name, value string) {
	r.c.Set(name, value)
}

func (r *request) SetCookie(name, value string) {
	r.c.Cookie(&fiber.Cookie{Name: name, Value: value, Path: "/", HTTPOnly: true})
}
