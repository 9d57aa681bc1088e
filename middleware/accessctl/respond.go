package accessctl

import (
	"encoding/json"
	"net/http"
)

// ErrorBody é o corpo JSON de toda rejeição.
type ErrorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

const (
	MsgUnauthorized    = "Unauthorized"
	MsgTooManyRequests = "Too many requests. Try again later"
	MsgSuspended       = "Your account is suspended"
	MsgInternal        = "Internal server error"
)
