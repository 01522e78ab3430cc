package errors

import (
	"fmt"
	"net/http"
)

// Stable error kinds. Clients branch on these, so they never change once published.
const (
	CodeValidationFailed   = "ValidationFailed"
	CodeInvalidVoteValue   = "InvalidVoteValue"
	CodeInvalidTargetKind  = "InvalidTargetKind"
	CodeTargetNotFound     = "TargetNotFound"
	CodeNodeNotFound       = "NodeNotFound"
	CodePaperNotFound      = "PaperNotFound"
	CodeDuplicateCitation  = "DuplicateCitation"
	CodeInvalidCitation    = "InvalidCitation"
	CodeInvalidDepth       = "InvalidDepth"
	CodeInvalidDirection   = "InvalidDirection"
	CodeStorageUnavailable = "StorageUnavailable"
	CodeRateLimited        = "RateLimited"
)

// ErrInvalidVoteValue is returned when a vote value is outside {-1, 0, 1}.
func ErrInvalidVoteValue(value int) *AppError {
	return NewValidationError(fmt.Sprintf("vote value must be -1, 0 or 1, got %d", value)).
		WithCode(CodeInvalidVoteValue).
		WithDetail("value", value)
}

// ErrInvalidTargetKind is returned for a target kind other than paper or edge.
func ErrInvalidTargetKind(kind string) *AppError {
	return NewValidationError(fmt.Sprintf("target kind must be 'paper' or 'edge', got %q", kind)).
		WithCode(CodeInvalidTargetKind).
		WithDetail("target_kind", kind)
}

// ErrTargetNotFound is returned when a vote references a missing paper or citation.
func ErrTargetNotFound(kind, id string) *AppError {
	return NewNotFoundError(fmt.Sprintf("%s %s", kind, id)).
		WithCode(CodeTargetNotFound).
		WithDetail("target_kind", kind).
		WithDetail("target_id", id)
}

// ErrNodeNotFound is returned when a graph expansion seed does not exist.
func ErrNodeNotFound(id string) *AppError {
	return NewNotFoundError(fmt.Sprintf("paper %s", id)).
		WithCode(CodeNodeNotFound).
		WithDetail("seed_id", id)
}

// ErrPaperNotFound is returned by direct paper lookups.
func ErrPaperNotFound(id string) *AppError {
	return NewNotFoundError(fmt.Sprintf("paper %s", id)).
		WithCode(CodePaperNotFound).
		WithDetail("paper_id", id)
}

// ErrDuplicateCitation is returned when the ordered (citing, cited) pair already exists.
func ErrDuplicateCitation(citingID, citedID string) *AppError {
	return NewConflictError("citation already exists").
		WithCode(CodeDuplicateCitation).
		WithDetail("citing_id", citingID).
		WithDetail("cited_id", citedID)
}

// ErrInvalidCitation is returned for a paper citing itself.
func ErrInvalidCitation(message string) *AppError {
	return NewValidationError(message).WithCode(CodeInvalidCitation)
}

// ErrInvalidDepth is returned for an expansion depth outside [0, max].
func ErrInvalidDepth(depth, max int) *AppError {
	return NewValidationError(fmt.Sprintf("depth must be between 0 and %d, got %d", max, depth)).
		WithCode(CodeInvalidDepth).
		WithDetail("max_depth", max)
}

// ErrInvalidDirection is returned for an unknown adjacency direction.
func ErrInvalidDirection(direction string) *AppError {
	return NewValidationError(fmt.Sprintf("direction must be 'both', 'outgoing' or 'incoming', got %q", direction)).
		WithCode(CodeInvalidDirection)
}

// ErrStorageUnavailable wraps a transport or backend failure.
func ErrStorageUnavailable(operation string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       CodeStorageUnavailable,
		Message:    fmt.Sprintf("storage unavailable during %s", operation),
		Cause:      cause,
		HTTPStatus: http.StatusServiceUnavailable,
		StackTrace: captureStackTrace(),
	}
}

// HasCode reports whether err carries the given stable code.
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// CodeOf returns the stable code of err, or "" when err is not an AppError.
func CodeOf(err error) string {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ""
}
