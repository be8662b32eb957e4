package response

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error document returned to the browser client.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// JSON writes data as a JSON response without any envelope.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err interface{}) {
	var body *ErrorBody

	switch e := err.(type) {
	case *ErrorBody:
		body = e
	case ErrorBody:
		body = &e
	case interface{ Error() string }:
		body = &ErrorBody{Error: e.Error()}
	case string:
		body = &ErrorBody{Error: e}
	default:
		body = &ErrorBody{Error: "An unknown error occurred"}
	}

	JSON(w, status, body)
}

// ErrorWithDetails writes an error response carrying a details string.
func ErrorWithDetails(w http.ResponseWriter, status int, message, details string) {
	Error(w, status, &ErrorBody{Error: message, Details: details})
}

// OK writes a 200 OK response.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, &ErrorBody{Error: message})
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, &ErrorBody{Error: message})
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, &ErrorBody{Error: message})
}
