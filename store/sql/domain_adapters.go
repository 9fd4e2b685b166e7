package sqlstore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-healthdata/core"
)

func newSchemaRecord(def core.SchemaDefinition, now time.Time) *schemaRecord {
	definition := append(json.RawMessage(nil), def.Definition...)
	if len(definition) == 0 {
		definition = json.RawMessage(`{}`)
	}
	createdAt := def.CreatedAt.UTC()
	if def.CreatedAt.IsZero() {
		createdAt = now
	}
	return &schemaRecord{
		ID:         uuid.NewString(),
		SchemaID:   strings.TrimSpace(def.ID),
		Version:    def.Version,
		Definition: definition,
		CreatedAt:  createdAt,
	}
}

func (r *schemaRecord) toDomain() core.SchemaDefinition {
	return core.SchemaDefinition{
		ID:         r.SchemaID,
		Version:    r.Version,
		Definition: append(json.RawMessage(nil), r.Definition...),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func newDataPointRecord(point core.DataPoint, now time.Time) *dataPointRecord {
	payload := append(json.RawMessage(nil), point.Payload...)
	if len(payload) == 0 {
		payload = json.RawMessage(`null`)
	}
	record := &dataPointRecord{
		ID:        uuid.NewString(),
		Owner:     strings.TrimSpace(point.Owner),
		SchemaID:  strings.TrimSpace(point.SchemaID),
		Version:   point.Version,
		Payload:   payload,
		CreatedAt: now,
	}
	if point.Meta.ID != nil {
		id := *point.Meta.ID
		record.PointID = &id
	}
	if point.Meta.Timestamp != nil {
		ts := point.Meta.Timestamp.UTC()
		record.PointTimestamp = &ts
	}
	return record
}

func (r *dataPointRecord) toDomain() core.DataPoint {
	point := core.DataPoint{
		Owner:    r.Owner,
		SchemaID: r.SchemaID,
		Version:  r.Version,
		Payload:  append(json.RawMessage(nil), r.Payload...),
	}
	if r.PointID != nil {
		id := *r.PointID
		point.Meta.ID = &id
	}
	if r.PointTimestamp != nil {
		ts := r.PointTimestamp.UTC()
		point.Meta.Timestamp = &ts
	}
	return point
}

func newGrantRecord(grant core.AuthorizationGrant, now time.Time) *grantRecord {
	record := &grantRecord{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}
	record.apply(grant, now)
	return record
}

func (r *grantRecord) apply(grant core.AuthorizationGrant, now time.Time) {
	r.Username = strings.TrimSpace(grant.Username)
	r.Domain = normalizeDomain(grant.Domain)
	r.AccessToken = grant.AccessToken
	r.RefreshToken = grant.RefreshToken
	r.TokenType = strings.TrimSpace(grant.TokenType)
	r.ExpiresAt = nil
	if grant.ExpiresAt != nil {
		expires := grant.ExpiresAt.UTC()
		r.ExpiresAt = &expires
	}
	r.Extras = copyAnyMap(grant.Extras)
	r.UpdatedAt = now
}

func (r *grantRecord) toDomain() core.AuthorizationGrant {
	grant := core.AuthorizationGrant{
		Username:     r.Username,
		Domain:       r.Domain,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Extras:       copyAnyMap(r.Extras),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if len(grant.Extras) == 0 {
		grant.Extras = nil
	}
	if r.ExpiresAt != nil {
		expires := r.ExpiresAt.UTC()
		grant.ExpiresAt = &expires
	}
	return grant
}

func normalizeDomain(domain string) string {
	return strings.TrimSpace(strings.ToLower(domain))
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
