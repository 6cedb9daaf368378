package http

const (
	CodeUnknown              = "UNKNOWN"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeMissingUserID        = "MISSING_USER_ID"
	CodeMissingAuthorization = "MISSING_AUTHORIZATION"
	CodeOriginNotAllowed     = "ORIGIN_NOT_ALLOWED"
	CodeRateLimited          = "RATE_LIMITED"
)
