package dto

type ListResponse struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// WriteResponse reports whether a write went live or was queued for review.
type WriteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const (
	WritePublished = "published"
	WriteStaged    = "pending_review"
	WriteDeleted   = "deleted"
)

type UploadResponse struct {
	URL string `json:"url"`
}
