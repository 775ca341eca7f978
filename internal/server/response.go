package server

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries pagination for list responses.
type Meta struct {
	Page          int `json:"page"`
	Limit         int `json:"limit"`
	TotalItems    int `json:"total_items"`
	TotalPages    int `json:"total_pages"`
	UnreadCount   int `json:"unread_count"`
	PendingWrites int `json:"pending_writes"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_ = json.NewEncoder(w).Encode(Response{
			Error: &ErrorDetail{Code: "ENCODING_ERROR", Message: "failed to encode response"},
		})
	}
}

func success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func successWithMeta(w http.ResponseWriter, data any, meta *Meta) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Meta: meta})
}

func failure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{
		Error: &ErrorDetail{Code: code, Message: message},
	})
}
