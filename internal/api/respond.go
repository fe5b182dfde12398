// Package api holds the HTTP plumbing shared by the services: JSON
// responses, query parsing and middleware.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, ErrorBody{Detail: detail})
}

// QueryInt reads an integer query parameter clamped to [min, max]. Missing
// or malformed values give def. A max <= 0 means no upper bound.
func QueryInt(r *http.Request, key string, def, min, max int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
