// Package apierror provides the error kinds of the sales ledger and the
// envelope every 4xx/5xx HTTP response uses.
// Services return *Error; handlers never inspect the message text, only the Kind.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable error class.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindOverReturn        Kind = "over_return"
	KindSeriesInactive    Kind = "series_inactive"
	KindSeriesNotFound    Kind = "series_not_found"
	KindReferenceNotFound Kind = "reference_not_found"
	KindConflict          Kind = "conflict"
	KindInconsistent      Kind = "inconsistent"
	KindUnauthorized      Kind = "unauthorized"
	KindRateLimited       Kind = "rate_limited"
	KindInternal          Kind = "internal"
)

// Error is a ledger failure with enough context for the caller to build its
// own message (article id, requested vs available, serie...).
type Error struct {
	Kind    Kind
	Detail  string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apierror.ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Detail == ""
}

// With adds a context entry.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrOverReturn        = &Error{Kind: KindOverReturn}
	ErrSeriesInactive    = &Error{Kind: KindSeriesInactive}
	ErrSeriesNotFound    = &Error{Kind: KindSeriesNotFound}
	ErrReferenceNotFound = &Error{Kind: KindReferenceNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInconsistent      = &Error{Kind: KindInconsistent}
)

// ── Constructors ─────────────────────────────────────────────────────────────

func Validation(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

// ValidationFields reports per-field input errors.
func ValidationFields(fields map[string]string) *Error {
	ctx := make(map[string]any, len(fields))
	for k, v := range fields {
		ctx[k] = v
	}
	return &Error{Kind: KindValidation, Detail: "Error de validacion", Context: ctx}
}

func InsufficientStock(articuloID string, requested, available int) *Error {
	return &Error{
		Kind:   KindInsufficientStock,
		Detail: "stock insuficiente",
		Context: map[string]any{
			"articulo_id": articuloID,
			"requested":   requested,
			"available":   available,
		},
	}
}

func OverReturn(ventaID, articuloID string, sold, alreadyReturned, requested int) *Error {
	return &Error{
		Kind:   KindOverReturn,
		Detail: "la cantidad devuelta supera la vendida",
		Context: map[string]any{
			"venta_id":         ventaID,
			"articulo_id":      articuloID,
			"sold":             sold,
			"already_returned": alreadyReturned,
			"requested":        requested,
		},
	}
}

func SeriesInactive(serie string) *Error {
	return &Error{Kind: KindSeriesInactive, Detail: "serie inactiva", Context: map[string]any{"serie": serie}}
}

func SeriesNotFound(serie string) *Error {
	return &Error{Kind: KindSeriesNotFound, Detail: "serie no encontrada", Context: map[string]any{"serie": serie}}
}

func ReferenceNotFound(entity string, id any) *Error {
	return &Error{
		Kind:    KindReferenceNotFound,
		Detail:  fmt.Sprintf("%s no encontrado", entity),
		Context: map[string]any{"entity": entity, "id": fmt.Sprint(id)},
	}
}

// Conflict means the operation lost a race for a shared row; it is safe to retry.
func Conflict(detail string, cause error) *Error {
	return &Error{Kind: KindConflict, Detail: detail, Err: cause}
}

func Inconsistent(detail string) *Error {
	return &Error{Kind: KindInconsistent, Detail: detail}
}

func Unauthorized(detail string) *Error {
	return &Error{Kind: KindUnauthorized, Detail: detail}
}

// ── Inspection ───────────────────────────────────────────────────────────────

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInsufficientStock, KindOverReturn, KindSeriesInactive:
		return http.StatusBadRequest
	case KindReferenceNotFound, KindSeriesNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ── Envelope ─────────────────────────────────────────────────────────────────

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Kind    Kind           `json:"kind"`
	Detail  string         `json:"detail"`
	Fields  map[string]any `json:"fields,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Envelope builds the response body for err. Internal errors never leak their
// cause to the client.
func Envelope(err error) *APIError {
	var e *Error
	if !errors.As(err, &e) {
		return &APIError{Kind: KindInternal, Detail: "error interno del servidor"}
	}
	switch e.Kind {
	case KindInternal, KindInconsistent:
		return &APIError{Kind: e.Kind, Detail: "error interno del servidor"}
	case KindValidation:
		return &APIError{Kind: e.Kind, Detail: e.Detail, Fields: e.Context}
	default:
		return &APIError{Kind: e.Kind, Detail: e.Detail, Context: e.Context}
	}
}

// New builds a bare envelope, used by middleware that has no *Error at hand.
func New(kind Kind, msg string) *APIError {
	return &APIError{Kind: kind, Detail: msg}
}
