package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates_EveryCategoryIsComplete(t *testing.T) {
	for _, cat := range Categories {
		t.Run(string(cat), func(t *testing.T) {
			e := New(cat)
			assert.True(t, cat.Valid())
			assert.NotEmpty(t, e.Code)
			assert.NotEmpty(t, e.Title)
			assert.NotEmpty(t, e.Message)
			assert.NotEmpty(t, e.Suggestions)
			assert.Equal(t, cat, e.Category)
			assert.Equal(t, StatusFor(cat), e.HTTPStatus())
		})
	}
}

func TestTemplates_Table(t *testing.T) {
	tests := []struct {
		cat       Category
		code      string
		status    int
		severity  Severity
		retryable bool
	}{
		{CategoryValidation, "VALIDATION_ERROR", 400, SeverityWarning, false},
		{CategoryNotFound, "NOT_FOUND", 404, SeverityWarning, false},
		{CategoryRateLimit, "RATE_LIMIT_EXCEEDED", 429, SeverityInfo, true},
		{CategoryNetwork, "NETWORK_ERROR", 503, SeverityError, true},
		{CategoryTimeout, "TIMEOUT", 504, SeverityWarning, true},
		{CategoryServiceDown, "SERVICE_UNAVAILABLE", 503, SeverityError, true},
		{CategoryInternal, "INTERNAL_ERROR", 500, SeverityCritical, false},
		{CategoryUpstreamAIError, "AI_SERVICE_ERROR", 503, SeverityError, true},
		{CategoryUpstreamDataError, "ESRI_API_ERROR", 503, SeverityError, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			e := New(tt.cat)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.status, e.HTTPStatus())
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.severity != SeverityCritical, e.Dismissable)
		})
	}
}

func TestNew_RateLimitAutoRetry(t *testing.T) {
	e := New(CategoryRateLimit)
	assert.Equal(t, RateLimitRetryAfter, e.AutoRetryAfter)
	assert.Zero(t, New(CategoryTimeout).AutoRetryAfter)
}

func TestNew_OptionsCannotOverrideSeverity(t *testing.T) {
	e := New(CategoryInternal, func(e *AppError) {
		e.Severity = SeverityInfo
		e.Dismissable = true
		e.Suggestions = nil
	})
	assert.Equal(t, SeverityCritical, e.Severity)
	assert.False(t, e.Dismissable)
	assert.NotEmpty(t, e.Suggestions)
}

func TestNew_Customization(t *testing.T) {
	e := New(CategoryNotFound,
		WithTitle("No such app"),
		WithMessagef("no template %q", "x"),
		WithSuggestions("", "Browse apps"),
		WithDetails(map[string]any{"id": "x"}),
	)
	assert.Equal(t, "No such app", e.Title)
	assert.Equal(t, `no template "x"`, e.Message)
	assert.Equal(t, []string{"Browse apps"}, e.Suggestions)
	assert.Equal(t, "x", e.Details["id"])

	blank := New(CategoryNotFound, WithSuggestions("", ""))
	assert.Equal(t, New(CategoryNotFound).Suggestions, blank.Suggestions)
}

func TestNew_UnknownCategoryIsInternal(t *testing.T) {
	e := New(Category("BOGUS"))
	assert.Equal(t, CategoryInternal, e.Category)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())
}

func TestNew_TemplatesAreNotShared(t *testing.T) {
	a := New(CategoryNetwork)
	a.Suggestions[0] = "mutated"
	assert.NotEqual(t, "mutated", New(CategoryNetwork).Suggestions[0])
}

func TestValidation_IncludesField(t *testing.T) {
	e := Validation("message", "too short", map[string]any{"length": 0})
	assert.Equal(t, CategoryValidation, e.Category)
	assert.Equal(t, "message", e.Details["field"])
	assert.Equal(t, 0, e.Details["length"])
	assert.Equal(t, "too short", e.Message)
}

func TestDegrade(t *testing.T) {
	orig := New(CategoryServiceDown, WithDetails(map[string]any{"origin": "data"}))
	d := Degrade(orig)
	require.NotNil(t, d)
	assert.Equal(t, SeverityInfo, d.Severity)
	assert.True(t, d.Dismissable)
	assert.Equal(t, CategoryServiceDown, d.Category)

	d.Details["origin"] = "changed"
	assert.Equal(t, "data", orig.Details["origin"])
	assert.Equal(t, SeverityError, orig.Severity)
	assert.Nil(t, Degrade(nil))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestToAppError(t *testing.T) {
	existing := New(CategoryNotFound)
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryInternal},
		{"app error passes through", fmt.Errorf("wrapped: %w", existing), CategoryNotFound},
		{"validation failure", &ValidationFailure{Field: "body", Message: "bad json"}, CategoryValidation},
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), CategoryTimeout},
		{"net timeout", timeoutErr{}, CategoryTimeout},
		{"url timeout", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, CategoryTimeout},
		{"canceled", context.Canceled, CategoryNetwork},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, CategoryNetwork},
		{"reset", syscall.ECONNRESET, CategoryNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, CategoryNetwork},
		{"upstream 500", &UpstreamError{Origin: OriginAI, StatusCode: 500, Err: errors.New("boom")}, CategoryServiceDown},
		{"upstream 503 data", &UpstreamError{Origin: OriginData, StatusCode: 503, Err: errors.New("down")}, CategoryServiceDown},
		{"upstream 429", &UpstreamError{Origin: OriginAI, StatusCode: 429, Err: errors.New("slow")}, CategoryRateLimit},
		{"upstream 404", &UpstreamError{Origin: OriginData, StatusCode: 404, Err: errors.New("gone")}, CategoryNotFound},
		{"upstream ai 400", &UpstreamError{Origin: OriginAI, StatusCode: 400, Err: errors.New("bad")}, CategoryUpstreamAIError},
		{"upstream data no status", &UpstreamError{Origin: OriginData, Err: errors.New("bad body")}, CategoryUpstreamDataError},
		{"upstream wrapping timeout", &UpstreamError{Origin: OriginAI, Err: context.DeadlineExceeded}, CategoryTimeout},
		{"plain error", errors.New("nil pointer"), CategoryInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAppError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Category)
			assert.NotEmpty(t, got.Suggestions)
		})
	}
}

func TestToAppError_ReturnsSameInstance(t *testing.T) {
	e := New(CategoryTimeout)
	assert.Same(t, e, ToAppError(e))
}

func TestToAppError_UpstreamDetails(t *testing.T) {
	cause := &UpstreamError{Origin: OriginData, StatusCode: 502, Err: errors.New("bad gateway")}
	e := ToAppError(cause)
	assert.Equal(t, "data", e.Details["origin"])
	assert.Equal(t, 502, e.Details["upstreamStatus"])
	assert.ErrorIs(t, e, cause)
}
