package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-healthdata/core"
)

// Adapter guards a provider adapter with an AdaptivePolicy. Fetches for a
// throttled (domain, user) bucket fail fast without reaching the provider.
type Adapter struct {
	inner  core.ProviderAdapter
	policy *AdaptivePolicy
	now    func() time.Time
}

func NewAdapter(inner core.ProviderAdapter, policy *AdaptivePolicy) (*Adapter, error) {
	if inner == nil {
		return nil, fmt.Errorf("ratelimit: provider adapter is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("ratelimit: policy is required")
	}
	return &Adapter{inner: inner, policy: policy, now: policy.now}, nil
}

// Wrap guards every adapter with the same policy.
func Wrap(policy *AdaptivePolicy, adapters ...core.ProviderAdapter) ([]core.ProviderAdapter, error) {
	out := make([]core.ProviderAdapter, 0, len(adapters))
	for _, adapter := range adapters {
		wrapped, err := NewAdapter(adapter, policy)
		if err != nil {
			return nil, err
		}
		out = append(out, wrapped)
	}
	return out, nil
}

func (a *Adapter) Domain() string {
	return a.inner.Domain()
}

func (a *Adapter) ListSchemaIDs(ctx context.Context) ([]string, error) {
	return a.inner.ListSchemaIDs(ctx)
}

func (a *Adapter) ListSchemaVersions(ctx context.Context, schemaID string) ([]int64, error) {
	return a.inner.ListSchemaVersions(ctx, schemaID)
}

func (a *Adapter) FetchData(ctx context.Context, req core.FetchRequest) ([]core.DataPoint, error) {
	key := Key{Domain: a.inner.Domain(), Username: req.Grant.Username}
	if err := a.policy.BeforeCall(ctx, key); err != nil {
		var throttled ThrottledError
		if goerrors.As(err, &throttled) {
			return nil, throttled.ToServiceError()
		}
		return nil, err
	}

	points, fetchErr := a.inner.FetchData(ctx, req)
	if err := a.policy.AfterCall(ctx, key, a.responseMeta(fetchErr)); err != nil && fetchErr == nil {
		return nil, err
	}
	return points, fetchErr
}

// responseMeta recovers the upstream status from a transport envelope.
// Errors without one count as a failed call that does not throttle.
func (a *Adapter) responseMeta(err error) ResponseMeta {
	if err == nil {
		return ResponseMeta{StatusCode: http.StatusOK}
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ResponseMeta{}
	}
	meta := ResponseMeta{}
	if status, ok := rich.Metadata["status_code"].(int); ok {
		meta.StatusCode = status
	} else if rich.Category == goerrors.CategoryRateLimit {
		meta.StatusCode = http.StatusTooManyRequests
	}
	if raw, ok := rich.Metadata["retry_after"].(string); ok {
		if delay, ok := parseRetryAfterValue(raw, a.now()); ok {
			meta.RetryAfter = &delay
		}
	}
	return meta
}

var _ core.ProviderAdapter = (*Adapter)(nil)
