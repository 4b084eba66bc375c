package envelope

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-advisor-backend/internal/apperr"
)

func fixClock(t *testing.T) {
	t.Helper()
	prev := Now
	Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 5e6, time.UTC) }
	t.Cleanup(func() { Now = prev })
}

func TestTimestamp_Format(t *testing.T) {
	ts := Timestamp(time.Date(2024, 3, 1, 12, 0, 0, 5e6, time.FixedZone("X", 3600)))
	assert.Equal(t, "2024-03-01T11:00:00.005Z", ts)
}

func TestSuccess_FlattensObjects(t *testing.T) {
	fixClock(t)
	b, err := json.Marshal(OK(map[string]any{"query": "census", "total": 3}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "census", got["query"])
	assert.Equal(t, float64(3), got["total"])
	assert.Equal(t, "2024-03-01T12:00:00.005Z", got["timestamp"])
}

func TestSuccess_PayloadTimestampWins(t *testing.T) {
	fixClock(t)
	b, err := json.Marshal(OK(struct {
		Timestamp string `json:"timestamp"`
	}{"2020-01-01T00:00:00.000Z"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"timestamp":"2020-01-01T00:00:00.000Z"}`, string(b))
}

func TestSuccess_NonObjectNestsUnderData(t *testing.T) {
	fixClock(t)
	b, err := json.Marshal(OK([]int{1, 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":[1,2],"timestamp":"2024-03-01T12:00:00.005Z"}`, string(b))
}

func TestFail_ShapeAndRequestID(t *testing.T) {
	fixClock(t)
	f := Fail(apperr.New(apperr.CategoryTimeout), "")
	require.NotEmpty(t, f.RequestID)
	assert.Equal(t, http.StatusGatewayTimeout, f.Status())
	assert.False(t, f.IsSuccess())

	f.Success = true
	b, err := json.Marshal(f)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, f.RequestID, got["requestId"])
	errObj := got["error"].(map[string]any)
	assert.Equal(t, "TIMEOUT", errObj["code"])
	assert.Equal(t, true, errObj["retryable"])
	assert.NotEmpty(t, errObj["suggestions"])
}

func TestFail_NilErrorIsInternal(t *testing.T) {
	f := Fail(nil, "req-1")
	assert.Equal(t, "req-1", f.RequestID)
	assert.Equal(t, apperr.CategoryInternal, f.Error.Category)
}

func TestWrite_Failure(t *testing.T) {
	rec := httptest.NewRecorder()
	f := Fail(apperr.New(apperr.CategoryRateLimit), "abc")
	Write(rec, f)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestWrite_Success(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, OK(map[string]string{"status": "ok"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestWrite_MarshalFailureFallsBackToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, OK(map[string]any{"bad": make(chan int)}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"INTERNAL_ERROR"`)
}

func TestWrite_ZeroFailureIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Failure{}.Status())

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { Write(rec, Failure{}) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["timestamp"])
	require.IsType(t, map[string]any{}, body["error"])
	assert.Equal(t, "INTERNAL_ERROR", body["error"].(map[string]any)["code"])
}
