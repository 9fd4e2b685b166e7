package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-healthdata/core"
)

// SchemaStore is the internal schema registry.
type SchemaStore struct {
	db   *bun.DB
	repo repository.Repository[*schemaRecord]
}

func NewSchemaStore(db *bun.DB) (*SchemaStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*schemaRecord](db, schemaHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid schema repository wiring: %w", err)
		}
	}
	return &SchemaStore{db: db, repo: repo}, nil
}

func (s *SchemaStore) CountMatching(ctx context.Context, schemaID string, version int64, skip int64, limit int64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: schema store is not configured")
	}
	count, err := s.db.NewSelect().
		Model((*schemaRecord)(nil)).
		Where("?TableAlias.schema_id = ?", strings.TrimSpace(schemaID)).
		Where("?TableAlias.version = ?", version).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	total := int64(count) - skip
	if total < 0 {
		total = 0
	}
	if limit > 0 && total > limit {
		total = limit
	}
	return total, nil
}

func (s *SchemaStore) ListSchemaIDs(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: schema store is not configured")
	}
	var ids []string
	err := s.db.NewSelect().
		Model((*schemaRecord)(nil)).
		ColumnExpr("DISTINCT ?TableAlias.schema_id").
		OrderExpr("?TableAlias.schema_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SchemaStore) ListSchemaVersions(ctx context.Context, schemaID string) ([]int64, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: schema store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("schema_id", "=", strings.TrimSpace(schemaID)),
		repository.OrderBy("version ASC"),
	)
	if err != nil {
		return nil, err
	}
	versions := make([]int64, 0, len(records))
	for _, record := range records {
		versions = append(versions, record.Version)
	}
	return versions, nil
}

func (s *SchemaStore) GetSchema(ctx context.Context, schemaID string, version int64) (core.SchemaDefinition, bool, error) {
	if s == nil || s.db == nil {
		return core.SchemaDefinition{}, false, fmt.Errorf("sqlstore: schema store is not configured")
	}
	record := &schemaRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.schema_id = ?", strings.TrimSpace(schemaID)).
		Where("?TableAlias.version = ?", version).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SchemaDefinition{}, false, nil
	}
	if err != nil {
		return core.SchemaDefinition{}, false, err
	}
	return record.toDomain(), true, nil
}

// CreateSchema inserts def, failing with a schema conflict when the
// (id, version) pair already exists.
func (s *SchemaStore) CreateSchema(ctx context.Context, def core.SchemaDefinition) (core.SchemaDefinition, error) {
	if s == nil || s.repo == nil {
		return core.SchemaDefinition{}, fmt.Errorf("sqlstore: schema store is not configured")
	}
	identity, err := def.Identity()
	if err != nil {
		return core.SchemaDefinition{}, err
	}
	def.ID = identity.ID()

	var out core.SchemaDefinition
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*schemaRecord)(nil)).
			Where("?TableAlias.schema_id = ?", def.ID).
			Where("?TableAlias.version = ?", def.Version).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return core.SchemaConflictError(def.ID, def.Version)
		}
		created, err := s.repo.CreateTx(ctx, tx, newSchemaRecord(def, time.Now().UTC()))
		if err != nil {
			return err
		}
		out = created.toDomain()
		return nil
	})
	if err != nil {
		return core.SchemaDefinition{}, err
	}
	return out, nil
}
