package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// writeJSON marshals v and writes it with the given status. A marshal
// failure degrades to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts extracts pagination from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathEventID parses the {eventId} path segment.
func pathEventID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("eventId"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// queryWallet returns the normalized wallet query parameter.
func queryWallet(r *http.Request) string {
	return domain.NormalizeAddress(r.URL.Query().Get("wallet"))
}

// decodeJSON reads a JSON request body, capped at 1 MiB.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}

// serviceStatus maps domain sentinels to an HTTP status. The second return
// is false for errors that should surface as a plain 500.
func serviceStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrPriceExceedsCap):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrDuplicateListing),
		errors.Is(err, domain.ErrListingSold),
		errors.Is(err, domain.ErrRightSold),
		errors.Is(err, domain.ErrStaleTransfer),
		errors.Is(err, domain.ErrSaleClosed),
		errors.Is(err, domain.ErrNotEntered),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrNotAWinner),
		errors.Is(err, domain.ErrNotCurrentWinner),
		errors.Is(err, domain.ErrBuyerAlreadyWinner),
		errors.Is(err, domain.ErrAlreadyWithdrawn),
		errors.Is(err, domain.ErrIsWinner),
		errors.Is(err, domain.ErrTransactionRejected):
		return http.StatusConflict, true
	}
	return 0, false
}
