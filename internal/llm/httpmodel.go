package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPModel calls a self-hosted generation endpoint speaking a small JSON
// protocol: POST /v1/enrich with the Request body, Response body back.
type HTTPModel struct {
	client *resty.Client
	model  string
}

// NewHTTPModel creates an HTTP-backed model client against baseURL.
func NewHTTPModel(baseURL, model string) *HTTPModel {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &HTTPModel{client: c, model: model}
}

type httpGenerateRequest struct {
	Model string  `json:"model"`
	Input Request `json:"input"`
}

// Generate posts the enrichment request and maps HTTP status classes onto
// the package error taxonomy.
func (h *HTTPModel) Generate(ctx context.Context, req Request) (*Response, error) {
	body := httpGenerateRequest{Model: h.model, Input: req}

	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/v1/enrich")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
	case code == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d: %s", ErrThrottled, code, resp.String())
	case code >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, code, resp.String())
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrBadRequest, code, resp.String())
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMalformed, err)
	}
	if out.Title == "" || out.Badge == "" {
		return nil, fmt.Errorf("%w: missing title or badge", ErrMalformed)
	}
	return &out, nil
}

// Name identifies the provider and model for logging.
func (h *HTTPModel) Name() string { return "http/" + h.model }

// Close is a no-op for the HTTP client.
func (h *HTTPModel) Close() error { return nil }
