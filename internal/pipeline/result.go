package pipeline

import "atlas-advisor-backend/internal/apperr"

// Result carries either a value or an AppError, never both.
type Result[T any] struct {
	value T
	err   *apperr.AppError
}

func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// Fail builds a failed Result. A nil error is treated as INTERNAL so a
// failed Result can never be mistaken for success.
func Fail[T any](err *apperr.AppError) Result[T] {
	if err == nil {
		err = apperr.New(apperr.CategoryInternal, apperr.WithMessage("A failure was reported without an error."))
	}
	return Result[T]{err: err}
}

// FromError classifies err with the error mapper.
func FromError[T any](err error) Result[T] {
	return Fail[T](apperr.ToAppError(err))
}

func (r Result[T]) IsOk() bool            { return r.err == nil }
func (r Result[T]) Value() T              { return r.value }
func (r Result[T]) Err() *apperr.AppError { return r.err }

// Unpack returns the value and error together.
func (r Result[T]) Unpack() (T, *apperr.AppError) { return r.value, r.err }

// Then runs next only when r succeeded.
func Then[T, U any](r Result[T], next func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Fail[U](r.err)
	}
	return next(r.value)
}
