package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-healthdata/core"
)

const KindREST = "rest"

const (
	defaultRESTClientTimeout           = 30 * time.Second
	defaultRESTResponseBodyLimit int64 = 10 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter executes provider and processing-unit HTTP calls. The client
// carries authentication; an oauth2 client is the usual choice.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{"Accept": "application/json"},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, transportError(
			"transport: rest adapter requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return core.TransportResponse{}, err
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "method": method, "url": target},
		)
	}
	applyHeaders(httpReq.Header, a.DefaultHeaders)
	applyHeaders(httpReq.Header, req.Headers)
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "method": method, "url": target},
		)
	}
	defer httpRes.Body.Close()

	limit := a.MaxResponseBodyBytes
	if req.MaxResponseBodyBytes > 0 {
		limit = req.MaxResponseBodyBytes
	}
	if limit <= 0 {
		limit = defaultRESTResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": httpRes.StatusCode},
		)
	}
	if int64(len(body)) > limit {
		return core.TransportResponse{}, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": httpRes.StatusCode, "response_limit_b": limit},
		)
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
		},
	}, nil
}

// GetJSON issues a GET and decodes a 2xx JSON body into out.
func (a *RESTAdapter) GetJSON(ctx context.Context, target string, query map[string]string, timeout time.Duration, out any) error {
	return a.exchangeJSON(ctx, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     target,
		Query:   query,
		Timeout: timeout,
	}, out)
}

// PostJSON encodes payload, POSTs it and decodes a 2xx JSON body into out.
func (a *RESTAdapter) PostJSON(ctx context.Context, target string, query map[string]string, timeout time.Duration, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return transportWrapError(err, goerrors.CategoryBadInput, "transport: encode request body", http.StatusBadRequest, nil)
	}
	return a.exchangeJSON(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     target,
		Query:   query,
		Body:    body,
		Timeout: timeout,
	}, out)
}

func (a *RESTAdapter) exchangeJSON(ctx context.Context, req core.TransportRequest, out any) error {
	res, err := a.Do(ctx, req)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return StatusError(req.Method, req.URL, res)
	}
	if out == nil || len(bytes.TrimSpace(res.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode response body",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "url": req.URL},
		)
	}
	return nil
}

func buildURL(raw string, extra map[string]string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", transportError(
			"transport: request url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST},
		)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "url": raw},
		)
	}
	if len(extra) > 0 {
		query := parsed.Query()
		for key, value := range extra {
			if key = strings.TrimSpace(key); key != "" {
				query.Set(key, strings.TrimSpace(value))
			}
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func applyHeaders(target http.Header, headers map[string]string) {
	for key, value := range headers {
		if key = strings.TrimSpace(key); key != "" {
			target.Set(key, strings.TrimSpace(value))
		}
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
