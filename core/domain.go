package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// StandardMeasureDomain is the reserved namespace for provider-agnostic
	// measures such as omh:omh:step_count.
	StandardMeasureDomain = "omh"
	SchemaNamespace       = "omh"
)

var schemaIDPattern = regexp.MustCompile(`^omh(:[a-zA-Z0-9_-]+)+$`)

type SchemaIdentity struct {
	id      string
	version int64
}

func NewSchemaIdentity(id string, version int64) (SchemaIdentity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SchemaIdentity{}, BadInputError("schema_id", "schema id is required")
	}
	if !schemaIDPattern.MatchString(id) {
		return SchemaIdentity{}, BadInputError("schema_id", fmt.Sprintf("schema id %q is invalid", id))
	}
	if version <= 0 {
		return SchemaIdentity{}, BadInputError("version", "version must be positive")
	}
	return SchemaIdentity{id: id, version: version}, nil
}

func (s SchemaIdentity) ID() string { return s.id }

func (s SchemaIdentity) Version() int64 { return s.version }

func (s SchemaIdentity) Domain() string { return ParseDomain(s.id) }

func (s SchemaIdentity) String() string {
	return fmt.Sprintf("%s@%d", s.id, s.version)
}

// ParseDomain returns the namespace segment of a schema id, the second
// colon-delimited token. It returns "" for ids with fewer than three tokens.
func ParseDomain(schemaID string) string {
	parts := strings.Split(strings.TrimSpace(schemaID), ":")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

func DataTypeFromSchemaID(schemaID string) (string, error) {
	parts := strings.Split(strings.TrimSpace(schemaID), ":")
	if len(parts) != 3 || parts[2] == "" {
		return "", BadInputError("schema_id", fmt.Sprintf("schema id %q is invalid", schemaID))
	}
	return parts[2], nil
}

func StandardMeasureID(dataType string) string {
	return SchemaNamespace + ":" + StandardMeasureDomain + ":" + strings.TrimSpace(dataType)
}

type MetaData struct {
	ID        *string    `json:"id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (m MetaData) clone() MetaData {
	out := MetaData{}
	if m.ID != nil {
		id := *m.ID
		out.ID = &id
	}
	if m.Timestamp != nil {
		ts := m.Timestamp.UTC()
		out.Timestamp = &ts
	}
	return out
}

// ColumnList holds dotted projection paths into a point payload. Empty
// means every column.
type ColumnList []string

func (c ColumnList) Normalize() ColumnList {
	if len(c) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(c))
	out := make(ColumnList, 0, len(c))
	for _, column := range c {
		column = strings.Trim(strings.TrimSpace(column), ".")
		if column == "" {
			continue
		}
		if _, ok := seen[column]; ok {
			continue
		}
		seen[column] = struct{}{}
		out = append(out, column)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type DataPoint struct {
	Owner    string          `json:"owner,omitempty"`
	SchemaID string          `json:"schema_id"`
	Version  int64           `json:"schema_version"`
	Meta     MetaData        `json:"metadata"`
	Payload  json.RawMessage `json:"data"`
}

func NewDataPoint(owner string, schema SchemaIdentity, meta MetaData, payload json.RawMessage) DataPoint {
	return DataPoint{
		Owner:    strings.TrimSpace(owner),
		SchemaID: schema.ID(),
		Version:  schema.Version(),
		Meta:     meta.clone(),
		Payload:  append(json.RawMessage(nil), payload...),
	}
}

func (p DataPoint) WithOwner(owner string) DataPoint {
	out := p.Clone()
	out.Owner = strings.TrimSpace(owner)
	return out
}

func (p DataPoint) Clone() DataPoint {
	out := p
	out.Meta = p.Meta.clone()
	out.Payload = append(json.RawMessage(nil), p.Payload...)
	return out
}

type AuthorizationGrant struct {
	Username     string         `json:"username"`
	Domain       string         `json:"domain"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Extras       map[string]any `json:"extras,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (g AuthorizationGrant) Validate() error {
	if strings.TrimSpace(g.Username) == "" {
		return BadInputError("username", "username is required")
	}
	if strings.TrimSpace(g.Domain) == "" {
		return BadInputError("domain", "domain is required")
	}
	if strings.TrimSpace(g.AccessToken) == "" {
		return BadInputError("access_token", "access token is required")
	}
	return nil
}

func (g AuthorizationGrant) Clone() AuthorizationGrant {
	out := g
	if g.ExpiresAt != nil {
		expires := g.ExpiresAt.UTC()
		out.ExpiresAt = &expires
	}
	out.Extras = copyAnyMap(g.Extras)
	return out
}

func (g AuthorizationGrant) Extra(key string) (string, bool) {
	value, ok := g.Extras[key]
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

type SchemaDefinition struct {
	ID         string          `json:"schema_id"`
	Version    int64           `json:"schema_version"`
	Definition json.RawMessage `json:"schema"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (d SchemaDefinition) Identity() (SchemaIdentity, error) {
	return NewSchemaIdentity(d.ID, d.Version)
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
