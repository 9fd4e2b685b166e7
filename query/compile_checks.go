package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-healthdata/core"
)

var (
	_ gocmd.Querier[ReadDataMessage, core.MultiValueResult[core.DataPoint]]  = (*ReadDataQuery)(nil)
	_ gocmd.Querier[CanReadMessage, bool]                                    = (*CanReadQuery)(nil)
	_ gocmd.Querier[GetSchemaMessage, core.SchemaDefinition]                 = (*GetSchemaQuery)(nil)
	_ gocmd.Querier[ListSchemaIDsMessage, core.MultiValueResult[string]]     = (*ListSchemaIDsQuery)(nil)
	_ gocmd.Querier[ListSchemaVersionsMessage, core.MultiValueResult[int64]] = (*ListSchemaVersionsQuery)(nil)
	_ gocmd.Querier[StandardMeasureSourcesMessage, []string]                 = (*StandardMeasureSourcesQuery)(nil)
)
