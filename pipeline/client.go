package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-healthdata/core"
)

// JSONClient is the HTTP surface a unit talks to. transport.RESTAdapter
// implements it.
type JSONClient interface {
	GetJSON(ctx context.Context, target string, query map[string]string, timeout time.Duration, out any) error
	PostJSON(ctx context.Context, target string, query map[string]string, timeout time.Duration, payload any, out any) error
}

type unitEndpoint struct {
	baseURL string
	id      string
	version int64
}

func (e unitEndpoint) url(endpoint string) string {
	target := strings.TrimRight(e.baseURL, "/") + "/omh/v1/" + url.PathEscape(e.id) + "/" + fmt.Sprint(e.version)
	if endpoint != "" {
		target += "/" + endpoint
	}
	return target
}

func windowQuery(start time.Time, end time.Time) map[string]string {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	return map[string]string{
		"t_start": start.UTC().Format(time.RFC3339),
		"t_end":   end.UTC().Format(time.RFC3339),
	}
}

type remoteUnit struct {
	client   JSONClient
	endpoint unitEndpoint
	timeout  time.Duration
}

func (r remoteUnit) fetchSchema(ctx context.Context) (json.RawMessage, error) {
	var definition json.RawMessage
	if err := r.client.GetJSON(ctx, r.endpoint.url(""), nil, r.timeout, &definition); err != nil {
		return nil, fmt.Errorf("pipeline: fetch schema for %s: %w", r.endpoint.id, err)
	}
	return definition, nil
}

func (r remoteUnit) fetchRequirements(ctx context.Context, start time.Time, end time.Time) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := r.client.GetJSON(ctx, r.endpoint.url("requirements"), windowQuery(start, end), r.timeout, &raw); err != nil {
		return nil, fmt.Errorf("pipeline: fetch requirements for %s: %w", r.endpoint.id, err)
	}
	return raw, nil
}

func (r remoteUnit) process(
	ctx context.Context,
	start time.Time,
	end time.Time,
	inputs map[string]core.MultiValueResult[core.DataPoint],
) ([]core.DataPoint, error) {
	var outputs []core.DataPoint
	if err := r.client.PostJSON(ctx, r.endpoint.url("process"), windowQuery(start, end), r.timeout, inputs, &outputs); err != nil {
		return nil, fmt.Errorf("pipeline: process %s: %w", r.endpoint.id, err)
	}
	return outputs, nil
}
