package query

import (
	"context"

	"github.com/goliatone/go-healthdata/core"
)

type DataReader interface {
	ReadData(ctx context.Context, req core.ReadRequest) (core.MultiValueResult[core.DataPoint], error)
	CanRead(ctx context.Context, req core.CanReadRequest) (bool, error)
}

type SchemaReader interface {
	GetSchema(ctx context.Context, schemaID string, version int64) (core.SchemaDefinition, error)
	ListSchemaIDs(ctx context.Context, req core.ListRequest) (core.MultiValueResult[string], error)
	ListSchemaVersions(ctx context.Context, schemaID string, req core.ListRequest) (core.MultiValueResult[int64], error)
	StandardMeasureSources(ctx context.Context, schemaID string, version int64) ([]string, error)
}

type ReadDataQuery struct {
	reader DataReader
}

func NewReadDataQuery(reader DataReader) *ReadDataQuery {
	return &ReadDataQuery{reader: reader}
}

func (q *ReadDataQuery) Query(ctx context.Context, msg ReadDataMessage) (core.MultiValueResult[core.DataPoint], error) {
	if q == nil || q.reader == nil {
		return core.MultiValueResult[core.DataPoint]{}, queryDependencyError("query: data reader is required")
	}
	return q.reader.ReadData(ctx, msg.Request)
}

type CanReadQuery struct {
	reader DataReader
}

func NewCanReadQuery(reader DataReader) *CanReadQuery {
	return &CanReadQuery{reader: reader}
}

func (q *CanReadQuery) Query(ctx context.Context, msg CanReadMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: data reader is required")
	}
	return q.reader.CanRead(ctx, msg.Request)
}

type GetSchemaQuery struct {
	reader SchemaReader
}

func NewGetSchemaQuery(reader SchemaReader) *GetSchemaQuery {
	return &GetSchemaQuery{reader: reader}
}

func (q *GetSchemaQuery) Query(ctx context.Context, msg GetSchemaMessage) (core.SchemaDefinition, error) {
	if q == nil || q.reader == nil {
		return core.SchemaDefinition{}, queryDependencyError("query: schema reader is required")
	}
	return q.reader.GetSchema(ctx, msg.SchemaID, msg.Version)
}

type ListSchemaIDsQuery struct {
	reader SchemaReader
}

func NewListSchemaIDsQuery(reader SchemaReader) *ListSchemaIDsQuery {
	return &ListSchemaIDsQuery{reader: reader}
}

func (q *ListSchemaIDsQuery) Query(ctx context.Context, msg ListSchemaIDsMessage) (core.MultiValueResult[string], error) {
	if q == nil || q.reader == nil {
		return core.MultiValueResult[string]{}, queryDependencyError("query: schema reader is required")
	}
	return q.reader.ListSchemaIDs(ctx, msg.Page)
}

type ListSchemaVersionsQuery struct {
	reader SchemaReader
}

func NewListSchemaVersionsQuery(reader SchemaReader) *ListSchemaVersionsQuery {
	return &ListSchemaVersionsQuery{reader: reader}
}

func (q *ListSchemaVersionsQuery) Query(
	ctx context.Context,
	msg ListSchemaVersionsMessage,
) (core.MultiValueResult[int64], error) {
	if q == nil || q.reader == nil {
		return core.MultiValueResult[int64]{}, queryDependencyError("query: schema reader is required")
	}
	return q.reader.ListSchemaVersions(ctx, msg.SchemaID, msg.Page)
}

type StandardMeasureSourcesQuery struct {
	reader SchemaReader
}

func NewStandardMeasureSourcesQuery(reader SchemaReader) *StandardMeasureSourcesQuery {
	return &StandardMeasureSourcesQuery{reader: reader}
}

func (q *StandardMeasureSourcesQuery) Query(ctx context.Context, msg StandardMeasureSourcesMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: schema reader is required")
	}
	return q.reader.StandardMeasureSources(ctx, msg.SchemaID, msg.Version)
}
