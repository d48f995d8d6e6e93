package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden     ErrCode = "FORBIDDEN"
	ErrOpsKeyInvalid ErrCode = "OPS_KEY_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrProgressNotFound ErrCode = "PROGRESS_NOT_FOUND"
	ErrResultNotFound   ErrCode = "RESULT_NOT_FOUND"

	// ─── Session-specific ──────────────────────────────────────────────
	ErrSessionNotFound       ErrCode = "SESSION_NOT_FOUND"
	ErrActiveSessionConflict ErrCode = "ACTIVE_SESSION_CONFLICT"
	ErrSessionNotActive      ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionExpired        ErrCode = "SESSION_EXPIRED"
	ErrAnswersLocked         ErrCode = "ANSWERS_LOCKED"
	ErrIncompleteAnswers     ErrCode = "INCOMPLETE_ANSWERS"
	ErrSubmissionInFlight    ErrCode = "SUBMISSION_IN_FLIGHT"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrOpsKeyInvalid:
		return "The operations key is invalid."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrProgressNotFound:
		return "No saved progress was found."
	case ErrResultNotFound:
		return "No result has been scored for this session."

	// ─── Session-specific ──────────────────────────────────────────────
	case ErrSessionNotFound:
		return "The test session was not found."
	case ErrActiveSessionConflict:
		return "Another test session is already in progress."
	case ErrSessionNotActive:
		return "The test session is no longer active."
	case ErrSessionExpired:
		return "The test session has run out of time."
	case ErrAnswersLocked:
		return "Answers are locked and can no longer be changed."
	case ErrIncompleteAnswers:
		return "All questions must be answered before submitting."
	case ErrSubmissionInFlight:
		return "The session is being submitted. Fetch the result shortly."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstreamUnavailable:
		return "The scoring engine is temporarily unavailable. Please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
