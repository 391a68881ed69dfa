package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error envelope of the public surface.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Route   string `json:"route,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg, details string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

func BadRequest(w http.ResponseWriter, msg, details string) {
	WriteError(w, http.StatusBadRequest, msg, details)
}

func Internal(w http.ResponseWriter, msg, details string) {
	WriteError(w, http.StatusInternalServerError, msg, details)
}

func GatewayTimeout(w http.ResponseWriter, msg, details string) {
	WriteError(w, http.StatusGatewayTimeout, msg, details)
}

// NotFoundRoute writes the fallback-route body: {"error":"NOT_FOUND","route":...}.
func NotFoundRoute(w http.ResponseWriter, route string) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: "NOT_FOUND", Route: route})
}
