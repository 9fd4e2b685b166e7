package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-healthdata/core"
)

const (
	TypeRegisterSchema = "healthdata.command.schema.register"
	TypeStoreData      = "healthdata.command.data.store"
	TypeDeleteData     = "healthdata.command.data.delete"
	TypePutGrant       = "healthdata.command.grant.put"
	TypeRevokeGrant    = "healthdata.command.grant.revoke"
	TypeRunPipeline    = "healthdata.command.pipeline.run"
)

type RegisterSchemaMessage struct {
	Definition core.SchemaDefinition
}

func (RegisterSchemaMessage) Type() string { return TypeRegisterSchema }

func (m RegisterSchemaMessage) Validate() error {
	return validateSchemaRef(m.Definition.ID, m.Definition.Version)
}

type StoreDataMessage struct {
	Points []core.DataPoint
}

func (StoreDataMessage) Type() string { return TypeStoreData }

func (m StoreDataMessage) Validate() error {
	if len(m.Points) == 0 {
		return commandValidationError("points", "at least one point is required")
	}
	for _, point := range m.Points {
		if strings.TrimSpace(point.Owner) == "" {
			return commandValidationError("owner", "owner is required")
		}
		if err := validateSchemaRef(point.SchemaID, point.Version); err != nil {
			return err
		}
	}
	return nil
}

type DeleteDataMessage struct {
	Deletion core.DataDeletion
}

func (DeleteDataMessage) Type() string { return TypeDeleteData }

func (m DeleteDataMessage) Validate() error {
	if strings.TrimSpace(m.Deletion.Owner) == "" {
		return commandValidationError("owner", "owner is required")
	}
	if err := validateSchemaRef(m.Deletion.SchemaID, m.Deletion.Version); err != nil {
		return err
	}
	return validateWindow(m.Deletion.Start, m.Deletion.End)
}

type PutGrantMessage struct {
	Grant core.AuthorizationGrant
}

func (PutGrantMessage) Type() string { return TypePutGrant }

func (m PutGrantMessage) Validate() error {
	if err := m.Grant.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid grant")
	}
	return nil
}

type RevokeGrantMessage struct {
	Username string
	Domain   string
}

func (RevokeGrantMessage) Type() string { return TypeRevokeGrant }

func (m RevokeGrantMessage) Validate() error {
	if strings.TrimSpace(m.Username) == "" {
		return commandValidationError("username", "username is required")
	}
	if strings.TrimSpace(m.Domain) == "" {
		return commandValidationError("domain", "domain is required")
	}
	return nil
}

// RunPipelineMessage runs every processing unit over [Start, End]. Zero
// times select the previous day.
type RunPipelineMessage struct {
	Start time.Time
	End   time.Time
}

func (RunPipelineMessage) Type() string { return TypeRunPipeline }

func (m RunPipelineMessage) Validate() error {
	if m.Start.IsZero() != m.End.IsZero() {
		return commandInvalidInputError("command: start and end must be set together")
	}
	if !m.Start.IsZero() && m.End.Before(m.Start) {
		return commandValidationError("end", "end must not be before start")
	}
	return nil
}

func validateSchemaRef(schemaID string, version int64) error {
	if strings.TrimSpace(schemaID) == "" {
		return commandValidationError("schema_id", "schema id is required")
	}
	if version <= 0 {
		return commandValidationError("version", "version must be positive")
	}
	return nil
}

func validateWindow(start *time.Time, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return commandValidationError("end", "end must not be before start")
	}
	return nil
}
