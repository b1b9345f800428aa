package services

import "errors"

var (
	ErrUnknownEntity           = errors.New("unknown content type")
	ErrInvalidPayload          = errors.New("invalid request body")
	ErrContentNotFound         = errors.New("content not found")
	ErrNotStageable            = errors.New("this content type can only be created by a main admin")
	ErrModificationUnsupported = errors.New("sub-admins cannot modify this content type")
	ErrInvalidAction           = errors.New("action must be update or delete")
	ErrForbidden               = errors.New("admin access required")

	ErrPendingNotFound      = errors.New("pending submission not found")
	ErrAlreadyReviewed      = errors.New("submission has already been reviewed")
	ErrModificationNotFound = errors.New("pending modification not found")

	ErrReportNotFound = errors.New("report not found")
	ErrInvalidReport  = errors.New("reason is required")
)

// ValidationError carries per-field messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// ContentRejectedError is returned when public text fails the content filter.
type ContentRejectedError struct {
	Reason  string
	Message string
}

func (e *ContentRejectedError) Error() string {
	return e.Message
}
