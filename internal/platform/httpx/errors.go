package httpx

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for the domain layer. Services wrap these with context;
// handlers map them to status codes through RespondError.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLocked       = errors.New("document locked")
)

// Error kinds surfaced in the envelope. Transaction errors are the only kind
// callers should retry.
const (
	KindValidation   = "validation"
	KindNotFound     = "not_found"
	KindForbidden    = "forbidden"
	KindUnauthorized = "unauthorized"
	KindLocked       = "locked"
	KindTransaction  = "transaction"
)

// RespondError maps domain errors to HTTP responses. Database failures keep
// their rollback semantics upstream; here they surface as 500 with the pg
// detail in the db field so operators can distinguish deadlocks from bugs.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, KindValidation, err.Error(), "")
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, KindNotFound, err.Error(), "")
	case errors.Is(err, ErrForbidden):
		Error(w, http.StatusForbidden, KindForbidden, err.Error(), "")
	case errors.Is(err, ErrUnauthorized):
		Error(w, http.StatusUnauthorized, KindUnauthorized, err.Error(), "")
	case errors.Is(err, ErrLocked):
		Error(w, http.StatusConflict, KindLocked, err.Error(), "")
	default:
		Error(w, http.StatusInternalServerError, KindTransaction, "internal error", PgDetail(err))
	}
}

// PgDetail extracts the PostgreSQL error message when err carries one.
func PgDetail(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	return ""
}
