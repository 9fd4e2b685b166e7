package transport

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-healthdata/core"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// StatusError describes a non-2xx response. Upstream 401 and 403 map to the
// auth categories so callers can tell expired tokens from outages.
func StatusError(method string, url string, res core.TransportResponse) error {
	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	switch res.StatusCode {
	case http.StatusUnauthorized:
		category, code = goerrors.CategoryAuth, http.StatusUnauthorized
	case http.StatusForbidden:
		category, code = goerrors.CategoryAuthz, http.StatusForbidden
	case http.StatusTooManyRequests:
		category, code = goerrors.CategoryRateLimit, http.StatusTooManyRequests
	}
	metadata := map[string]any{"adapter": KindREST, "status_code": res.StatusCode, "body": truncateBody(res.Body)}
	if retryAfter := http.Header(headerMap(res.Headers)).Get("Retry-After"); retryAfter != "" {
		metadata["retry_after"] = retryAfter
	}
	return transportError(
		fmt.Sprintf("transport: %s %s returned status %d", method, url, res.StatusCode),
		category,
		code,
		metadata,
	)
}

func headerMap(flat map[string]string) map[string][]string {
	out := make(map[string][]string, len(flat))
	for key, value := range flat {
		out[http.CanonicalHeaderKey(key)] = []string{value}
	}
	return out
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.ErrorNotAuthorized
	case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
		return core.ErrorUpstreamFailure
	default:
		return core.ErrorInternal
	}
}
