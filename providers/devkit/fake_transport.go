package devkit

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/goliatone/go-healthdata/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// FakeTransportAdapter replays scripted responses in order and repeats the
// last one once the script runs out.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	scripts  []TransportScript
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
	}
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	index := len(a.requests) - 1
	switch {
	case index < len(a.scripts):
		script := a.scripts[index]
		return cloneTransportResponse(script.Response), script.Err
	case len(a.scripts) > 0:
		last := a.scripts[len(a.scripts)-1]
		return cloneTransportResponse(last.Response), last.Err
	}
	return core.TransportResponse{
		StatusCode: 200,
		Headers:    map[string]string{},
		Body:       []byte("{}"),
		Metadata:   map[string]any{"kind": a.kind},
	}, nil
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := in
	out.Headers = maps.Clone(in.Headers)
	out.Query = maps.Clone(in.Query)
	out.Body = append([]byte(nil), in.Body...)
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := in
	out.Headers = map[string]string{}
	maps.Copy(out.Headers, in.Headers)
	out.Metadata = map[string]any{}
	maps.Copy(out.Metadata, in.Metadata)
	out.Body = append([]byte(nil), in.Body...)
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
