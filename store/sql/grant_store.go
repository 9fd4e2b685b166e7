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

// GrantStore persists one authorization grant per (username, domain).
type GrantStore struct {
	db   *bun.DB
	repo repository.Repository[*grantRecord]
}

func NewGrantStore(db *bun.DB) (*GrantStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*grantRecord](db, grantHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid grant repository wiring: %w", err)
		}
	}
	return &GrantStore{db: db, repo: repo}, nil
}

func (s *GrantStore) GetGrant(ctx context.Context, username string, domain string) (core.AuthorizationGrant, bool, error) {
	if s == nil || s.repo == nil {
		return core.AuthorizationGrant{}, false, fmt.Errorf("sqlstore: grant store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("username", "=", strings.TrimSpace(username)),
		repository.SelectBy("domain", "=", normalizeDomain(domain)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.AuthorizationGrant{}, false, err
	}
	if len(records) == 0 {
		return core.AuthorizationGrant{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

// PutGrant inserts or replaces the grant for its (username, domain) pair.
func (s *GrantStore) PutGrant(ctx context.Context, grant core.AuthorizationGrant) (core.AuthorizationGrant, error) {
	if s == nil || s.repo == nil {
		return core.AuthorizationGrant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	if err := grant.Validate(); err != nil {
		return core.AuthorizationGrant{}, err
	}

	now := time.Now().UTC()
	var out core.AuthorizationGrant
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findGrantTx(ctx, tx, grant.Username, grant.Domain)
		if err != nil {
			return err
		}
		if record == nil {
			created, createErr := s.repo.CreateTx(ctx, tx, newGrantRecord(grant, now))
			if createErr != nil {
				return createErr
			}
			out = created.toDomain()
			return nil
		}
		record.apply(grant, now)
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.AuthorizationGrant{}, err
	}
	return out, nil
}

func (s *GrantStore) RevokeGrant(ctx context.Context, username string, domain string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: grant store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*grantRecord)(nil)).
		Where("username = ?", strings.TrimSpace(username)).
		Where("domain = ?", normalizeDomain(domain)).
		Exec(ctx)
	return err
}

// ListUsernames returns every user holding at least one grant, sorted.
func (s *GrantStore) ListUsernames(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: grant store is not configured")
	}
	var usernames []string
	err := s.db.NewSelect().
		Model((*grantRecord)(nil)).
		ColumnExpr("DISTINCT ?TableAlias.username").
		OrderExpr("?TableAlias.username ASC").
		Scan(ctx, &usernames)
	if err != nil {
		return nil, err
	}
	if usernames == nil {
		usernames = []string{}
	}
	return usernames, nil
}

func findGrantTx(ctx context.Context, tx bun.Tx, username string, domain string) (*grantRecord, error) {
	record := &grantRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", strings.TrimSpace(username)).
		Where("?TableAlias.domain = ?", normalizeDomain(domain)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
