package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes carried in error responses.
const (
	codeUnauthorized      = "unauthorized"
	codeNotFound          = "not_found"
	codeAuthentication    = "authentication_failed"
	codeRemoteAPI         = "remote_api_error"
	codeParse             = "parse_error"
	codeUnsupportedStatus = "unsupported_status"
	codeInternal          = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code" example:"not_found" validate:"required"`
}

func errorBody(code, msg string) errResponse {
	return errResponse{Error: msg, Code: code}
}
