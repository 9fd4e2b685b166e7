package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func schemaHandlers() repository.ModelHandlers[*schemaRecord] {
	return repository.ModelHandlers[*schemaRecord]{
		NewRecord: func() *schemaRecord {
			return &schemaRecord{}
		},
		GetID: func(record *schemaRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *schemaRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *schemaRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func dataPointHandlers() repository.ModelHandlers[*dataPointRecord] {
	return repository.ModelHandlers[*dataPointRecord]{
		NewRecord: func() *dataPointRecord {
			return &dataPointRecord{}
		},
		GetID: func(record *dataPointRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *dataPointRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *dataPointRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func grantHandlers() repository.ModelHandlers[*grantRecord] {
	return repository.ModelHandlers[*grantRecord]{
		NewRecord: func() *grantRecord {
			return &grantRecord{}
		},
		GetID: func(record *grantRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *grantRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *grantRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
