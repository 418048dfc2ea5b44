package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"orderhub/internal/validation"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

type validationResponse struct {
	Error   string                  `json:"error"`
	Details []validation.FieldError `json:"details"`
}

// decodeBody reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue. An empty body
// is accepted when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	if err := validation.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:   "validation failed",
			Details: validation.Details(err),
		})
		return false
	}
	return true
}

// limitParam parses ?limit=, falling back to def and capping at max.
func limitParam(r *http.Request, def, max int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
