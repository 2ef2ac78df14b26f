package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionMissing Code = "SESSION_MISSING"
	CodeSessionInvalid Code = "SESSION_INVALID"

	// Object errors
	CodeObjectNotFound      Code = "OBJECT_NOT_FOUND"
	CodeObjectNameEmpty     Code = "OBJECT_NAME_EMPTY"
	CodeObjectAlreadyCaught Code = "OBJECT_ALREADY_CAUGHT"
	CodeObjectHeld          Code = "OBJECT_HELD"
	CodeObjectNotOwned      Code = "OBJECT_NOT_OWNED"

	// Vote errors
	CodeVoteInvalidValue Code = "VOTE_INVALID_VALUE"

	// Asset errors
	CodeAssetInvalidImage Code = "ASSET_INVALID_IMAGE"
	CodeAssetTooLarge     Code = "ASSET_TOO_LARGE"

	// Maintenance errors
	CodeMaintenanceUnauthorized Code = "MAINTENANCE_UNAUTHORIZED"

	// Storage errors
	CodeStorage Code = "STORAGE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeObjectNameEmpty,
		CodeVoteInvalidValue,
		CodeAssetInvalidImage:
		return http.StatusBadRequest

	// Payload too large
	case CodeAssetTooLarge:
		return http.StatusRequestEntityTooLarge

	// Unauthorized - no or invalid session
	case CodeSessionMissing,
		CodeSessionInvalid,
		CodeMaintenanceUnauthorized:
		return http.StatusUnauthorized

	// Forbidden - authenticated but not entitled
	case CodeObjectNotOwned:
		return http.StatusForbidden

	// Not found
	case CodeObjectNotFound:
		return http.StatusNotFound

	// Conflict - lost a race or state disallows the operation
	case CodeObjectAlreadyCaught,
		CodeObjectHeld:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
