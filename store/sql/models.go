package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type schemaRecord struct {
	bun.BaseModel `bun:"table:healthdata_schemas,alias:hs"`

	ID         string          `bun:"id,pk"`
	SchemaID   string          `bun:"schema_id,notnull"`
	Version    int64           `bun:"version,notnull"`
	Definition json.RawMessage `bun:"definition,type:jsonb,notnull"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type dataPointRecord struct {
	bun.BaseModel `bun:"table:healthdata_data_points,alias:hdp"`

	ID             string          `bun:"id,pk"`
	Owner          string          `bun:"owner,notnull"`
	SchemaID       string          `bun:"schema_id,notnull"`
	Version        int64           `bun:"version,notnull"`
	PointID        *string         `bun:"point_id"`
	PointTimestamp *time.Time      `bun:"point_timestamp,nullzero"`
	Payload        json.RawMessage `bun:"payload,type:jsonb,notnull"`
	CreatedAt      time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type grantRecord struct {
	bun.BaseModel `bun:"table:healthdata_grants,alias:hg"`

	ID           string         `bun:"id,pk"`
	Username     string         `bun:"username,notnull"`
	Domain       string         `bun:"domain,notnull"`
	AccessToken  string         `bun:"access_token,notnull"`
	RefreshToken string         `bun:"refresh_token,notnull"`
	TokenType    string         `bun:"token_type,notnull"`
	ExpiresAt    *time.Time     `bun:"expires_at,nullzero"`
	Extras       map[string]any `bun:"extras,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
