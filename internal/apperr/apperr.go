// Package apperr carries the error envelope shared by the runtime session
// API and the embedded data service. Recoverable failures are converted to
// an AppError at the handler boundary; nothing escapes as an unhandled
// fault that would blank the page.
package apperr

import "fmt"

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *AppError `json:"error"`
}

func New(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFound(kind, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", kind, id),
	}
}

func UnknownSchema(id string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_SCHEMA",
		Status:  404,
		Message: fmt.Sprintf("Unknown schema: %s", id),
	}
}

func InvalidPayload(msg string) *AppError {
	return &AppError{Code: "INVALID_PAYLOAD", Status: 400, Message: msg}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}
