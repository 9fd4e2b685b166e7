package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput             = "HEALTHDATA_BAD_INPUT"
	ErrorUnknownSchema        = "HEALTHDATA_UNKNOWN_SCHEMA"
	ErrorUnknownProvider      = "HEALTHDATA_UNKNOWN_PROVIDER"
	ErrorNotAuthorized        = "HEALTHDATA_NOT_AUTHORIZED"
	ErrorProviderFetchFailed  = "HEALTHDATA_PROVIDER_FETCH_FAILED"
	ErrorMalformedRequirement = "HEALTHDATA_MALFORMED_REQUIREMENT"
	ErrorSchemaConflict       = "HEALTHDATA_SCHEMA_CONFLICT"
	ErrorUpstreamFailure      = "HEALTHDATA_UPSTREAM_FAILURE"
	ErrorInternal             = "HEALTHDATA_INTERNAL_ERROR"
)

var (
	ErrUnknownSchema        = errors.New("core: unknown schema")
	ErrUnknownProvider      = errors.New("core: unknown provider")
	ErrNotAuthorized        = errors.New("core: not authorized")
	ErrProviderFetch        = errors.New("core: provider fetch failed")
	ErrMalformedRequirement = errors.New("core: malformed requirement")
	ErrSchemaConflict       = errors.New("core: schema already registered")
)

func UnknownSchemaError(schemaID string, version int64) *goerrors.Error {
	return kindError(
		ErrUnknownSchema,
		fmt.Sprintf("core: schema %q version %d is unknown", schemaID, version),
		goerrors.CategoryNotFound,
		ErrorUnknownSchema,
		map[string]any{"schema_id": schemaID, "version": version},
	)
}

func UnknownProviderError(domain string) *goerrors.Error {
	return kindError(
		ErrUnknownProvider,
		fmt.Sprintf("core: no provider registered for domain %q", domain),
		goerrors.CategoryInternal,
		ErrorUnknownProvider,
		map[string]any{"domain": domain},
	)
}

func NotAuthorizedError(username string, domains ...string) *goerrors.Error {
	message := "core: user has not authorized any source domain for this measure"
	if len(domains) == 1 {
		message = fmt.Sprintf("core: user has not authorized domain %q", domains[0])
	}
	return kindError(
		ErrNotAuthorized,
		message,
		goerrors.CategoryAuthz,
		ErrorNotAuthorized,
		map[string]any{"username": username, "domains": append([]string(nil), domains...)},
	)
}

func ProviderFetchError(domain string, schemaID string, cause error) *goerrors.Error {
	source := ErrProviderFetch
	if cause != nil {
		source = fmt.Errorf("%w: %w", ErrProviderFetch, cause)
	}
	return kindError(
		source,
		fmt.Sprintf("core: provider %q failed to fetch %q", domain, schemaID),
		goerrors.CategoryExternal,
		ErrorProviderFetchFailed,
		map[string]any{"domain": domain, "schema_id": schemaID},
	)
}

func MalformedRequirementError(index int, message string) *goerrors.Error {
	err := kindError(
		ErrMalformedRequirement,
		"core: malformed requirement: "+strings.TrimSpace(message),
		goerrors.CategoryValidation,
		ErrorMalformedRequirement,
		nil,
	)
	if index >= 0 {
		err.WithMetadata(map[string]any{"index": index})
	}
	return err
}

func SchemaConflictError(schemaID string, version int64) *goerrors.Error {
	return kindError(
		ErrSchemaConflict,
		fmt.Sprintf("core: schema %q version %d is already registered", schemaID, version),
		goerrors.CategoryConflict,
		ErrorSchemaConflict,
		map[string]any{"schema_id": schemaID, "version": version},
	)
}

func BadInputError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("core: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// ErrorKind reports the text code carried by err, or "" when err is not an
// envelope.
func ErrorKind(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func kindError(
	source error,
	message string,
	category goerrors.Category,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.Wrap(source, category, message).
		WithCode(serviceHTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrUnknownSchema):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorUnknownSchema)
	case errors.Is(err, ErrUnknownProvider):
		return newServiceError(err.Error(), goerrors.CategoryInternal, ErrorUnknownProvider)
	case errors.Is(err, ErrNotAuthorized):
		return newServiceError(err.Error(), goerrors.CategoryAuthz, ErrorNotAuthorized)
	case errors.Is(err, ErrProviderFetch):
		return newServiceError(err.Error(), goerrors.CategoryExternal, ErrorProviderFetchFailed)
	case errors.Is(err, ErrMalformedRequirement):
		return newServiceError(err.Error(), goerrors.CategoryValidation, ErrorMalformedRequirement)
	case errors.Is(err, ErrSchemaConflict):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorSchemaConflict)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorUnknownSchema
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorNotAuthorized
	case goerrors.CategoryExternal:
		return ErrorProviderFetchFailed
	case goerrors.CategoryConflict:
		return ErrorSchemaConflict
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
