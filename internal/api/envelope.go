package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the standard response envelope of the gallery API.
type Response struct {
	Result     any          `json:"result"`
	Success    bool         `json:"success"`
	Errors     []APIError   `json:"errors"`
	Messages   []APIMessage `json:"messages"`
	ResultInfo *ResultInfo  `json:"result_info,omitempty"`
}

// ResultInfo carries pagination metadata for search results.
type ResultInfo struct {
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
}

// APIMessage represents a single informational message in a response.
type APIMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError represents a single error in a response.
type APIError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Source  *APIErrorSource `json:"source,omitempty"`
}

// APIErrorSource identifies the request field that caused the error.
type APIErrorSource struct {
	Pointer string `json:"pointer"`
}

// SuccessResponse builds a successful response.
func SuccessResponse(result any) Response {
	return Response{
		Result:   result,
		Success:  true,
		Errors:   []APIError{},
		Messages: []APIMessage{},
	}
}

// PaginatedResponse builds a successful response that includes result_info.
func PaginatedResponse(result any, info ResultInfo) Response {
	resp := SuccessResponse(result)
	resp.ResultInfo = &info
	return resp
}

// ErrorResponse builds an error response.
func ErrorResponse(code int, message string) Response {
	return Response{
		Result:  nil,
		Success: false,
		Errors: []APIError{
			{Code: code, Message: message},
		},
		Messages: []APIMessage{},
	}
}

// FieldErrorResponse builds an error response pointing at a request field.
func FieldErrorResponse(code int, message, field string) Response {
	resp := ErrorResponse(code, message)
	resp.Errors[0].Source = &APIErrorSource{Pointer: field}
	return resp
}

// WriteJSON serialises resp as JSON and writes it to w with the given HTTP status code.
func WriteJSON(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("WriteJSON: failed to encode response", "error", err)
	}
}
