package http

const (
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeNotFound         = "NOT_FOUND"
	CodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	CodeInternal         = "INTERNAL_ERROR"
)
