// Package envelope builds the uniform JSON shape every API response uses.
package envelope

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"atlas-advisor-backend/internal/apperr"
)

// TimeFormat is ISO-8601 in UTC with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Now is swapped in tests.
var Now = func() time.Time { return time.Now().UTC() }

// Timestamp formats t the way every envelope stamps time.
func Timestamp(t time.Time) string { return t.UTC().Format(TimeFormat) }

// Response is either a Success or a Failure.
type Response interface {
	Status() int
	IsSuccess() bool
}

type Success[T any] struct {
	Data      T
	Timestamp string
}

type Failure struct {
	Success   bool             `json:"success"`
	Error     *apperr.AppError `json:"error"`
	Timestamp string           `json:"timestamp"`
	RequestID string           `json:"requestId"`
}

func OK[T any](data T) Success[T] {
	return Success[T]{Data: data, Timestamp: Timestamp(Now())}
}

// Fail wraps err into a Failure. A blank requestID gets a fresh one.
func Fail(err *apperr.AppError, requestID string) Failure {
	if err == nil {
		err = apperr.New(apperr.CategoryInternal)
	}
	if requestID == "" {
		requestID = NewRequestID()
	}
	return Failure{Error: err, Timestamp: Timestamp(Now()), RequestID: requestID}
}

func NewRequestID() string { return uuid.NewString() }

func (s Success[T]) Status() int     { return http.StatusOK }
func (s Success[T]) IsSuccess() bool { return true }
func (f Failure) IsSuccess() bool    { return false }

// Status reports the error's HTTP status, or 500 when Error is unset.
func (f Failure) Status() int {
	if f.Error == nil {
		return http.StatusInternalServerError
	}
	return f.Error.HTTPStatus()
}

// MarshalJSON flattens the payload object and adds success and timestamp.
// Payload fields win over the envelope's, so a payload carrying its own
// timestamp keeps it. Non-object payloads are nested under "data".
func (s Success[T]) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '{' {
		fields["data"] = raw
	} else if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["success"] = json.RawMessage("true")
	if _, ok := fields["timestamp"]; !ok {
		ts, _ := json.Marshal(s.Timestamp)
		fields["timestamp"] = ts
	}
	return json.Marshal(fields)
}

// MarshalJSON pins success to false regardless of the struct field.
func (f Failure) MarshalJSON() ([]byte, error) {
	type alias Failure
	a := alias(f)
	a.Success = false
	return json.Marshal(a)
}

// Write serializes resp to w. It is the only JSON writer the HTTP layer uses.
func Write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if f, ok := resp.(Failure); ok {
		if f.Error == nil || f.RequestID == "" || f.Timestamp == "" {
			f = Fail(f.Error, f.RequestID)
			resp = f
		}
		w.Header().Set("X-Request-Id", f.RequestID)
		if f.Error.AutoRetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(f.Error.AutoRetryAfter))
		}
	}
	b, err := json.Marshal(resp)
	if err != nil {
		slog.Error("envelope marshal failed", "error", err)
		fallback := Fail(apperr.New(apperr.CategoryInternal, apperr.WithCause(err)), "")
		w.Header().Set("X-Request-Id", fallback.RequestID)
		w.WriteHeader(fallback.Status())
		b, _ = json.Marshal(fallback)
		_, _ = w.Write(b)
		return
	}
	w.WriteHeader(resp.Status())
	_, _ = w.Write(b)
}
