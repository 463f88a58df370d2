// Package httputil provides shared helpers for the HTTP layer.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/rootedapp/portal/internal/errors"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error *errors.ServiceError `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError renders err as a JSON error response. Non-service errors are
// wrapped as internal errors so the client always sees a stable shape.
func WriteError(w http.ResponseWriter, err error) {
	svcErr := errors.AsService(err)
	WriteJSON(w, svcErr.HTTPStatus, ErrorBody{Error: svcErr})
}
