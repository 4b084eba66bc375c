package apperr

import (
	"fmt"
	"net/http"
)

// Category is the closed set of failure kinds a caller can receive.
type Category string

const (
	CategoryValidation        Category = "VALIDATION"
	CategoryNotFound          Category = "NOT_FOUND"
	CategoryRateLimit         Category = "RATE_LIMIT"
	CategoryNetwork           Category = "NETWORK"
	CategoryTimeout           Category = "TIMEOUT"
	CategoryServiceDown       Category = "SERVICE_DOWN"
	CategoryInternal          Category = "INTERNAL"
	CategoryUpstreamAIError   Category = "UPSTREAM_AI_ERROR"
	CategoryUpstreamDataError Category = "UPSTREAM_DATA_ERROR"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryValidation,
	CategoryNotFound,
	CategoryRateLimit,
	CategoryNetwork,
	CategoryTimeout,
	CategoryServiceDown,
	CategoryInternal,
	CategoryUpstreamAIError,
	CategoryUpstreamDataError,
}

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// AppError is the only error shape handed to API callers.
type AppError struct {
	Code           string         `json:"code"`
	Category       Category       `json:"category"`
	Severity       Severity       `json:"severity"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Details        map[string]any `json:"details,omitempty"`
	Suggestions    []string       `json:"suggestions"`
	Retryable      bool           `json:"retryable"`
	Dismissable    bool           `json:"dismissable"`
	AutoRetryAfter int            `json:"autoRetryAfter,omitempty"` // seconds

	cause error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// HTTPStatus is the transport status for the error's category.
func (e *AppError) HTTPStatus() int {
	if t, ok := templates[e.Category]; ok {
		return t.status
	}
	return http.StatusInternalServerError
}

// Option customizes an AppError built from a category template.
type Option func(*AppError)

func WithTitle(title string) Option {
	return func(e *AppError) {
		if title != "" {
			e.Title = title
		}
	}
}

func WithMessage(msg string) Option {
	return func(e *AppError) {
		if msg != "" {
			e.Message = msg
		}
	}
}

func WithMessagef(format string, args ...any) Option {
	return WithMessage(fmt.Sprintf(format, args...))
}

// WithSuggestions replaces the template suggestions. Blank entries are
// dropped and an empty result keeps the template list.
func WithSuggestions(s ...string) Option {
	return func(e *AppError) {
		out := make([]string, 0, len(s))
		for _, v := range s {
			if v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			e.Suggestions = out
		}
	}
}

func WithDetails(details map[string]any) Option {
	return func(e *AppError) {
		if len(details) == 0 {
			return
		}
		if e.Details == nil {
			e.Details = make(map[string]any, len(details))
		}
		for k, v := range details {
			e.Details[k] = v
		}
	}
}

func WithCode(code string) Option {
	return func(e *AppError) {
		if code != "" {
			e.Code = code
		}
	}
}

func WithCause(err error) Option {
	return func(e *AppError) { e.cause = err }
}

// New builds an AppError from the category's default template. Severity,
// retryability and dismissability always come from the template.
func New(cat Category, opts ...Option) *AppError {
	t, ok := templates[cat]
	if !ok {
		cat = CategoryInternal
		t = templates[CategoryInternal]
	}
	e := &AppError{
		Code:           t.code,
		Category:       cat,
		Severity:       t.severity,
		Title:          t.title,
		Message:        t.message,
		Suggestions:    append([]string(nil), t.suggestions...),
		Retryable:      t.retryable,
		Dismissable:    t.severity != SeverityCritical,
		AutoRetryAfter: t.autoRetryAfter,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Severity = t.severity
	e.Dismissable = t.severity != SeverityCritical
	if len(e.Suggestions) == 0 {
		e.Suggestions = append([]string(nil), t.suggestions...)
	}
	return e
}

// Validation is shorthand for a VALIDATION error naming the failed field.
func Validation(field, msg string, details map[string]any) *AppError {
	d := map[string]any{"field": field}
	for k, v := range details {
		d[k] = v
	}
	return New(CategoryValidation, WithMessage(msg), WithDetails(d))
}

// Degrade returns an INFO copy of e for responses served from a fallback
// payload. The category is kept so callers can still see what failed.
func Degrade(e *AppError) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Severity = SeverityInfo
	c.Dismissable = true
	c.Suggestions = append([]string(nil), e.Suggestions...)
	if e.Details != nil {
		c.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}
