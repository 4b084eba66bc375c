package apperr

import "net/http"

// RateLimitRetryAfter is the auto-retry hint, in seconds, on RATE_LIMIT errors.
const RateLimitRetryAfter = 30

type template struct {
	code           string
	status         int
	severity       Severity
	title          string
	message        string
	suggestions    []string
	retryable      bool
	autoRetryAfter int
}

// One template per category.
var templates = map[Category]template{
	CategoryValidation: {
		code:     "VALIDATION_ERROR",
		status:   http.StatusBadRequest,
		severity: SeverityWarning,
		title:    "Check your input",
		message:  "The request could not be processed because some input is invalid.",
		suggestions: []string{
			"Check the highlighted field and try again",
		},
	},
	CategoryNotFound: {
		code:     "NOT_FOUND",
		status:   http.StatusNotFound,
		severity: SeverityWarning,
		title:    "Not found",
		message:  "We couldn't find what you were looking for.",
		suggestions: []string{
			"Browse apps manually",
			"Try a different search term",
		},
	},
	CategoryRateLimit: {
		code:     "RATE_LIMIT_EXCEEDED",
		status:   http.StatusTooManyRequests,
		severity: SeverityInfo,
		title:    "Slow down a little",
		message:  "Too many requests were sent in a short time.",
		suggestions: []string{
			"Wait a moment; we'll retry automatically",
		},
		retryable:      true,
		autoRetryAfter: RateLimitRetryAfter,
	},
	CategoryNetwork: {
		code:     "NETWORK_ERROR",
		status:   http.StatusServiceUnavailable,
		severity: SeverityError,
		title:    "Connection problem",
		message:  "We couldn't reach a service we depend on.",
		suggestions: []string{
			"Check your internet connection",
			"Try again in a moment",
		},
		retryable: true,
	},
	CategoryTimeout: {
		code:     "TIMEOUT",
		status:   http.StatusGatewayTimeout,
		severity: SeverityWarning,
		title:    "This is taking too long",
		message:  "The request took longer than expected and was stopped.",
		suggestions: []string{
			"Try again in a moment",
			"Try a shorter or simpler question",
		},
		retryable: true,
	},
	CategoryServiceDown: {
		code:     "SERVICE_UNAVAILABLE",
		status:   http.StatusServiceUnavailable,
		severity: SeverityError,
		title:    "Service unavailable",
		message:  "A service we depend on is temporarily unavailable.",
		suggestions: []string{
			"Try again in a moment",
			"Browse apps manually",
		},
		retryable: true,
	},
	CategoryInternal: {
		code:     "INTERNAL_ERROR",
		status:   http.StatusInternalServerError,
		severity: SeverityCritical,
		title:    "Something went wrong",
		message:  "An unexpected error occurred.",
		suggestions: []string{
			"Reload the page to start over",
		},
	},
	CategoryUpstreamAIError: {
		code:     "AI_SERVICE_ERROR",
		status:   http.StatusServiceUnavailable,
		severity: SeverityError,
		title:    "Assistant unavailable",
		message:  "The assistant couldn't answer right now.",
		suggestions: []string{
			"Browse apps manually",
			"Try again in a moment",
		},
		retryable: true,
	},
	CategoryUpstreamDataError: {
		code:     "ESRI_API_ERROR",
		status:   http.StatusServiceUnavailable,
		severity: SeverityError,
		title:    "Dataset search unavailable",
		message:  "The dataset catalog couldn't be searched right now.",
		suggestions: []string{
			"Try again in a moment",
			"Browse the featured datasets instead",
		},
		retryable: true,
	},
}

// Template returns a fresh copy of the category's default error.
func Template(cat Category) *AppError { return New(cat) }

// StatusFor reports the HTTP status for a category.
func StatusFor(cat Category) int {
	if t, ok := templates[cat]; ok {
		return t.status
	}
	return http.StatusInternalServerError
}

// SeverityFor reports the fixed severity for a category.
func SeverityFor(cat Category) Severity {
	if t, ok := templates[cat]; ok {
		return t.severity
	}
	return SeverityCritical
}

// Valid reports whether cat belongs to the closed taxonomy.
func (c Category) Valid() bool {
	_, ok := templates[c]
	return ok
}
