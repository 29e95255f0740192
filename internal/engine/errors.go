package engine

import (
	"errors"

	"lattice-backend/internal/store"
)

// Code is the closed error taxonomy every engine operation reports through.
// The values are the wire-level strings transport adapters serialize as-is.
type Code string

const (
	CodeValidationFailed Code = "ERROR_VALIDATION_FAILED"
	CodeInvalidID        Code = "ERROR_INVALID_ID"
	CodeIDNotFound       Code = "ERROR_ID_NOT_FOUND"
	CodeDataNotFound     Code = "ERROR_DATA_NOT_FOUND"
	CodeInvalidModel     Code = "ERROR_INVALID_MODEL"
	CodeSystem           Code = "ERROR_SYSTEM"
)

// HTTPStatus maps an error code to the status transport adapters respond with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidationFailed:
		return 422
	case CodeInvalidID:
		return 400
	case CodeIDNotFound, CodeDataNotFound, CodeInvalidModel:
		return 404
	case CodeSystem:
		return 500
	}
	return 500
}

type Meta struct {
	Count int64 `json:"count"`
}

// Result is the single contract every engine operation returns: data and
// meta on success, or an error code with message and optional field errors.
// Transport adapters serialize it directly, so the field names are part of
// the wire contract.
type Result struct {
	Data        any               `json:"data,omitempty"`
	Meta        *Meta             `json:"meta,omitempty"`
	ErrorCode   Code              `json:"errorCode,omitempty"`
	Message     string            `json:"message,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`

	// cause retains the raw store error for server-side logging. It is
	// never serialized; untrusted callers only see Message.
	cause error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.ErrorCode == ""
}

// Cause returns the underlying store error for logging, or nil.
func (r Result) Cause() error {
	return r.cause
}

// Row returns the result data as a single row, or nil if the data is not a
// row (a list result, or a failure).
func (r Result) Row() map[string]any {
	row, _ := r.Data.(map[string]any)
	return row
}

func Success(data any, count int64) Result {
	return Result{Data: data, Meta: &Meta{Count: count}}
}

func Fail(code Code, message string) Result {
	return Result{ErrorCode: code, Message: message}
}

func FailFields(code Code, message string, fieldErrors map[string]string) Result {
	return Result{ErrorCode: code, Message: message, FieldErrors: fieldErrors}
}

// Translate maps a raw store error onto the closed taxonomy. Field-level
// validation failures keep only the fields the current operation declared
// (allowedFields); a missing row maps to notFound, since id lookups and
// predicate lookups report distinct codes on the wire. Anything else is a
// system failure whose raw cause is kept for logging but replaced with a
// generic message unless the deployment runs in debug mode.
func Translate(err error, allowedFields []string, notFound Code, debug bool) Result {
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		fieldErrors := make(map[string]string)
		for field, msg := range verr.Fields {
			for _, allowed := range allowedFields {
				if field == allowed {
					fieldErrors[field] = msg
					break
				}
			}
		}
		r := FailFields(CodeValidationFailed, "Validation was failed.", fieldErrors)
		r.cause = err
		return r
	}

	if errors.Is(err, store.ErrNotFound) {
		switch notFound {
		case CodeIDNotFound:
			return Fail(CodeIDNotFound, "The document with the given id was not found.")
		default:
			return Fail(CodeDataNotFound, "The document you retrieve was not found.")
		}
	}

	message := "An error was encountered."
	if debug {
		message = err.Error()
	}
	r := Fail(CodeSystem, message)
	r.cause = err
	return r
}
