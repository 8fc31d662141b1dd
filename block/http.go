package block

import (
	"context"
	"net/http"
	"strings"

	"github.com/meikuraledutech/flow"
)

// HTTPConfig is the config of an http_request node. Every string in it may be
// a script value.
type HTTPConfig struct {
	Method  string         `json:"method"`
	URL     string         `json:"url"`
	Headers map[string]any `json:"headers"`
	Query   map[string]any `json:"query"`
	Body    any            `json:"body"`
}

// HTTPRequest performs one outgoing call through the host HTTP client. It
// never returns an error: any failure becomes a fatal output carrying the
// response status and data.
type HTTPRequest struct {
	ec   *flow.ExecutionContext
	cfg  HTTPConfig
	next string
}

func NewHTTPRequest(ec *flow.ExecutionContext, cfg HTTPConfig, next string) *HTTPRequest {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	return &HTTPRequest{ec: ec, cfg: cfg, next: next}
}

func (b *HTTPRequest) Execute(ctx context.Context, params any) (flow.Output, error) {
	req, err := b.request(ctx, params)
	if err != nil {
		return failedCall(err, nil), nil
	}
	if b.ec.HTTP == nil {
		return failedCall(flow.ErrNoHTTPClient, nil), nil
	}

	res, err := b.ec.HTTP.Do(ctx, req)
	if err != nil {
		return failedCall(err, res), nil
	}
	return flow.Continue(b.next, map[string]any{
		"status":  res.Status,
		"headers": res.Headers,
		"data":    res.Data,
	}), nil
}

func (b *HTTPRequest) request(ctx context.Context, params any) (flow.HTTPRequest, error) {
	url, err := resolve(ctx, b.ec, b.cfg.URL, params)
	if err != nil {
		return flow.HTTPRequest{}, err
	}
	headers, err := b.strings(ctx, b.cfg.Headers, params)
	if err != nil {
		return flow.HTTPRequest{}, err
	}
	query, err := b.strings(ctx, b.cfg.Query, params)
	if err != nil {
		return flow.HTTPRequest{}, err
	}
	body, err := resolve(ctx, b.ec, b.cfg.Body, params)
	if err != nil {
		return flow.HTTPRequest{}, err
	}
	return flow.HTTPRequest{
		Method:  strings.ToUpper(b.cfg.Method),
		URL:     stringify(url),
		Headers: headers,
		Query:   query,
		Body:    body,
	}, nil
}

func (b *HTTPRequest) strings(ctx context.Context, m map[string]any, params any) (map[string]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		r, err := resolve(ctx, b.ec, v, params)
		if err != nil {
			return nil, err
		}
		out[k] = stringify(r)
	}
	return out, nil
}

func failedCall(err error, res *flow.HTTPResult) flow.Output {
	detail := map[string]any{"status": 0, "data": nil}
	if res != nil {
		detail["status"] = res.Status
		detail["data"] = res.Data
	}
	return flow.FatalWith(err.Error(), detail)
}
