package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
	apperrors "github.com/efficiencynow/efficiencynow/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

var statusByCode = map[string]int{
	auth.CodeInvalidInput:       http.StatusBadRequest,
	auth.CodeEmailExists:        http.StatusConflict,
	auth.CodeInvalidCredentials: http.StatusUnauthorized,
	auth.CodeInvalidSession:     http.StatusUnauthorized,
	auth.CodeUserNotFound:       http.StatusNotFound,
}

// fromServiceError maps an auth.Service error onto its HTTP status.
func fromServiceError(err error) *HTTPError {
	if code, ok := apperrors.CodeOf(err); ok {
		if status, ok := statusByCode[code]; ok {
			return NewHTTPError(status, code, errMessage(err), err)
		}
	}
	return asHTTPError(err)
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
