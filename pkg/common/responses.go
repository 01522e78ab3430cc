package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "citegraph/pkg/errors"
)

// MaxBodyBytes bounds JSON request bodies
const MaxBodyBytes = 1 << 20

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ParseJSONBody parses a JSON request body with a size limit. Decoding
// failures are validation errors.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return pkgerrors.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}

	return nil
}

// QueryBool reads a boolean query parameter. Missing means false.
func QueryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.NewValidationError(fmt.Sprintf("%s must be a boolean, got %q", key, raw))
	}
	return v, nil
}

// QueryInt reads an optional integer query parameter
func QueryInt(r *http.Request, key string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("%s must be an integer, got %q", key, raw))
	}
	return &v, nil
}

// CallerID resolves the caller's user id. An explicit body value wins,
// then the X-User-ID header, then the user_id query parameter.
func CallerID(r *http.Request, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if id, ok := GetUserID(r.Context()); ok {
		return id
	}
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("user_id"))
}
