package engine

import "fmt"

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(kind, code string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s %s not found", kind, code),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

// ReportExecutionError is the single fatal error class a report run can
// surface. Only the fetch stage produces it; every other stage degrades
// in place because report configuration is user-authored and must not be
// able to crash the server.
type ReportExecutionError struct {
	ReportCode string
	Stage      string
	Err        error
}

func (e *ReportExecutionError) Error() string {
	return fmt.Sprintf("report %s: %s stage failed: %v", e.ReportCode, e.Stage, e.Err)
}

func (e *ReportExecutionError) Unwrap() error {
	return e.Err
}
