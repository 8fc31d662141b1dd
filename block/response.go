package block

import (
	"context"
	"net/http"

	"github.com/meikuraledutech/flow"
)

// ResponseConfig is the config of a "response" node.
type ResponseConfig struct {
	HTTPCode int `json:"httpCode"`
}

// Response is terminal: it wraps its input as the response body.
type Response struct {
	cfg ResponseConfig
}

func NewResponse(cfg ResponseConfig) *Response {
	if cfg.HTTPCode == 0 {
		cfg.HTTPCode = http.StatusOK
	}
	return &Response{cfg: cfg}
}

func (b *Response) Execute(_ context.Context, params any) (flow.Output, error) {
	return flow.Continue("", flow.HTTPResponse{HTTPCode: b.cfg.HTTPCode, Body: params}), nil
}
