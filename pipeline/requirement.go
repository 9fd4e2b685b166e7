package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goliatone/go-healthdata/core"
)

// Requirement is one input stream a processing unit asks for.
type Requirement struct {
	SchemaID           string
	Version            int64
	Start              *time.Time
	End                *time.Time
	NumToReturn        int64
	IncludeOnePrevious bool
}

// ParseRequirements decodes a unit's requirement list. Every entry is
// validated before the caller reads any data.
func ParseRequirements(raw json.RawMessage) ([]Requirement, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var entries []any
	if err := decoder.Decode(&entries); err != nil {
		return nil, core.MalformedRequirementError(-1, "malformed requirements")
	}
	if entries == nil {
		return nil, core.MalformedRequirementError(-1, "malformed requirements")
	}

	out := make([]Requirement, 0, len(entries))
	for index, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, core.MalformedRequirementError(index, "requirement must be an object")
		}
		requirement, err := parseRequirement(index, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, requirement)
	}
	return out, nil
}

func parseRequirement(index int, fields map[string]any) (Requirement, error) {
	schemaID, ok := fields["schema_id"].(string)
	if !ok || strings.TrimSpace(schemaID) == "" {
		return Requirement{}, core.MalformedRequirementError(index, "missing schema id")
	}
	version, ok := integral(fields["version"])
	if !ok {
		return Requirement{}, core.MalformedRequirementError(index, "missing version")
	}

	requirement := Requirement{
		SchemaID:    strings.TrimSpace(schemaID),
		Version:     version,
		NumToReturn: math.MaxInt64,
	}
	var err error
	if requirement.Start, err = optionalTime(index, fields, "t_start"); err != nil {
		return Requirement{}, err
	}
	if requirement.End, err = optionalTime(index, fields, "t_end"); err != nil {
		return Requirement{}, err
	}
	if limit, ok := integral(fields["num_to_return"]); ok && limit > 0 {
		requirement.NumToReturn = limit
	}
	if previous, ok := fields["include_one_previous"].(bool); ok {
		requirement.IncludeOnePrevious = previous
	}
	return requirement, nil
}

func integral(value any) (int64, bool) {
	number, ok := value.(json.Number)
	if !ok {
		return 0, false
	}
	parsed, err := number.Int64()
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func optionalTime(index int, fields map[string]any, key string) (*time.Time, error) {
	text, ok := fields[key].(string)
	if !ok {
		return nil, nil
	}
	parsed, err := ParseTimestamp(text)
	if err != nil {
		return nil, core.MalformedRequirementError(index, fmt.Sprintf("%s is not a valid timestamp", key))
	}
	return &parsed, nil
}

// ParseTimestamp accepts RFC 3339 timestamps and bare ISO dates.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("pipeline: invalid timestamp %q", value)
}
