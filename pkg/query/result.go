package query

import "github.com/foliobase/foliobase/pkg/apperr"

// Result is the uniform envelope every operation resolves to. Exactly one of
// Data and Error is set on terminal resolution; Count carries the number of
// rows the statement touched when known.
type Result struct {
	Data  any             `json:"data"`
	Error *apperr.AppError `json:"error"`
	Count *int            `json:"count,omitempty"`
}

// Ok wraps data in a successful envelope.
func Ok(data any, count int) Result {
	return Result{Data: data, Count: &count}
}

// Fail wraps an error in a failed envelope.
func Fail(err error) Result {
	return Result{Error: apperr.From(err)}
}
