// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/responderhq/opschat/pkg/errs"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeErr maps the error taxonomy onto HTTP status codes in one place.
func writeErr(w http.ResponseWriter, err error) {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case errs.KindAuthorization:
		writeError(w, http.StatusForbidden, err.Error())
	case errs.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case errs.KindConflict:
		writeError(w, http.StatusConflict, err.Error())
	case errs.KindNetwork:
		writeError(w, http.StatusBadGateway, "upstream unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
