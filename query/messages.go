package query

import (
	"strings"

	"github.com/goliatone/go-healthdata/core"
)

const (
	TypeReadData               = "healthdata.query.data.read"
	TypeCanRead                = "healthdata.query.data.can_read"
	TypeGetSchema              = "healthdata.query.schema.get"
	TypeListSchemaIDs          = "healthdata.query.schema.list_ids"
	TypeListSchemaVersions     = "healthdata.query.schema.list_versions"
	TypeStandardMeasureSources = "healthdata.query.schema.standard_sources"
)

type ReadDataMessage struct {
	Request core.ReadRequest
}

func (ReadDataMessage) Type() string { return TypeReadData }

func (m ReadDataMessage) Validate() error {
	if err := validateSchemaRef(m.Request.SchemaID, m.Request.Version); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.Username) == "" {
		return queryValidationError("username", "username is required")
	}
	if m.Request.Skip < 0 {
		return queryValidationError("skip", "skip must be >= 0")
	}
	if m.Request.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Request.Start != nil && m.Request.End != nil && m.Request.End.Before(*m.Request.Start) {
		return queryInvalidInputError("query: end must not be before start")
	}
	return nil
}

type CanReadMessage struct {
	Request core.CanReadRequest
}

func (CanReadMessage) Type() string { return TypeCanRead }

func (m CanReadMessage) Validate() error {
	if err := validateSchemaRef(m.Request.SchemaID, m.Request.Version); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.Username) == "" {
		return queryValidationError("username", "username is required")
	}
	return nil
}

type GetSchemaMessage struct {
	SchemaID string
	Version  int64
}

func (GetSchemaMessage) Type() string { return TypeGetSchema }

func (m GetSchemaMessage) Validate() error {
	return validateSchemaRef(m.SchemaID, m.Version)
}

type ListSchemaIDsMessage struct {
	Page core.ListRequest
}

func (ListSchemaIDsMessage) Type() string { return TypeListSchemaIDs }

func (m ListSchemaIDsMessage) Validate() error {
	return validatePage(m.Page)
}

type ListSchemaVersionsMessage struct {
	SchemaID string
	Page     core.ListRequest
}

func (ListSchemaVersionsMessage) Type() string { return TypeListSchemaVersions }

func (m ListSchemaVersionsMessage) Validate() error {
	if strings.TrimSpace(m.SchemaID) == "" {
		return queryValidationError("schema_id", "schema id is required")
	}
	return validatePage(m.Page)
}

// StandardMeasureSourcesMessage asks which provider domains can serve a
// standard measure.
type StandardMeasureSourcesMessage struct {
	SchemaID string
	Version  int64
}

func (StandardMeasureSourcesMessage) Type() string { return TypeStandardMeasureSources }

func (m StandardMeasureSourcesMessage) Validate() error {
	return validateSchemaRef(m.SchemaID, m.Version)
}

func validateSchemaRef(schemaID string, version int64) error {
	if strings.TrimSpace(schemaID) == "" {
		return queryValidationError("schema_id", "schema id is required")
	}
	if version <= 0 {
		return queryValidationError("version", "version must be positive")
	}
	return nil
}

func validatePage(page core.ListRequest) error {
	if page.Skip < 0 {
		return queryValidationError("skip", "skip must be >= 0")
	}
	if page.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
