package sqlstore

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-healthdata/core"
)

// DataStore keeps internal data points. Reads are newest first with
// untimestamped points last.
type DataStore struct {
	db   *bun.DB
	repo repository.Repository[*dataPointRecord]
}

func NewDataStore(db *bun.DB) (*DataStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*dataPointRecord](db, dataPointHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid data point repository wiring: %w", err)
		}
	}
	return &DataStore{db: db, repo: repo}, nil
}

// StoreData writes all points in one transaction.
func (s *DataStore) StoreData(ctx context.Context, points []core.DataPoint) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: data store is not configured")
	}
	for index, point := range points {
		if strings.TrimSpace(point.Owner) == "" {
			return core.BadInputError(fmt.Sprintf("points[%d].owner", index), "owner is required")
		}
		if _, err := core.NewSchemaIdentity(point.SchemaID, point.Version); err != nil {
			return err
		}
	}
	if len(points) == 0 {
		return nil
	}

	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, point := range points {
			if _, err := s.repo.CreateTx(ctx, tx, newDataPointRecord(point, now)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DataStore) GetData(ctx context.Context, query core.DataQuery) (core.MultiValueResult[core.DataPoint], error) {
	if s == nil || s.repo == nil {
		return core.MultiValueResult[core.DataPoint]{}, fmt.Errorf("sqlstore: data store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("owner", "=", strings.TrimSpace(query.Owner)),
		repository.SelectBy("schema_id", "=", strings.TrimSpace(query.SchemaID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("?TableAlias.version = ?", query.Version)
			return applyWindow(q, query.Start, query.End).
				OrderExpr("CASE WHEN ?TableAlias.point_timestamp IS NULL THEN 1 ELSE 0 END ASC").
				OrderExpr("?TableAlias.point_timestamp DESC").
				OrderExpr("?TableAlias.created_at ASC")
		}),
		repository.SelectPaginate(clampInt(query.Limit), clampInt(query.Skip)),
	}
	records, total, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return core.MultiValueResult[core.DataPoint]{}, err
	}

	columns := query.Columns.Normalize()
	points := make([]core.DataPoint, 0, len(records))
	for _, record := range records {
		point := record.toDomain()
		if len(columns) > 0 {
			projected, err := core.ProjectPayload(point.Payload, columns)
			if err != nil {
				return core.MultiValueResult[core.DataPoint]{}, err
			}
			point.Payload = projected
		}
		points = append(points, point)
	}
	return core.NewMultiValueResult(points, int64(total)), nil
}

func (s *DataStore) DeleteData(ctx context.Context, deletion core.DataDeletion) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: data store is not configured")
	}
	q := s.db.NewDelete().
		Model((*dataPointRecord)(nil)).
		Where("owner = ?", strings.TrimSpace(deletion.Owner)).
		Where("schema_id = ?", strings.TrimSpace(deletion.SchemaID)).
		Where("version = ?", deletion.Version)
	if deletion.Start != nil {
		q = q.Where("point_timestamp >= ?", deletion.Start.UTC())
	}
	if deletion.End != nil {
		q = q.Where("point_timestamp <= ?", deletion.End.UTC())
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func applyWindow(q *bun.SelectQuery, start *time.Time, end *time.Time) *bun.SelectQuery {
	if start != nil {
		q = q.Where("?TableAlias.point_timestamp >= ?", start.UTC())
	}
	if end != nil {
		q = q.Where("?TableAlias.point_timestamp <= ?", end.UTC())
	}
	return q
}

func clampInt(value int64) int {
	if value <= 0 {
		return 0
	}
	if value > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(value)
}

// ListUsernames returns every owner holding at least one point, sorted.
func (s *DataStore) ListUsernames(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: data store is not configured")
	}
	var owners []string
	err := s.db.NewSelect().
		Model((*dataPointRecord)(nil)).
		ColumnExpr("DISTINCT ?TableAlias.owner").
		OrderExpr("?TableAlias.owner ASC").
		Scan(ctx, &owners)
	if err != nil {
		return nil, err
	}
	if owners == nil {
		owners = []string{}
	}
	return owners, nil
}
