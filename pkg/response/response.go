package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/huangang/taskboard/pkg/logger"
	"gorm.io/gorm"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
	Message string       `json:"message,omitempty"` // debug mode only
	Stack   string       `json:"stack,omitempty"`   // debug mode only
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError represents a structured application error with an HTTP status.
type AppError struct {
	HTTPStatus int
	Message    string
	Details    []FieldError
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Message: msg}
}

func NewValidation(details []FieldError) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Message: "Validation failed", Details: details}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Message: msg}
}

func NewConflict(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Message: msg}
}

func NewTooLarge(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusRequestEntityTooLarge, Message: msg}
}

func NewServerError(msg string, err error) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Message: msg, Err: err}
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error sends an error response. *AppError keeps its status; record-not-found
// and duplicate-key errors from gorm map to 404 and 409; anything else is
// logged and reported as a generic 500.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		c.JSON(appErr.HTTPStatus, ErrorBody{Error: appErr.Message, Details: appErr.Details})
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, ErrorBody{Error: "Resource not found"})
		return
	case errors.Is(err, gorm.ErrDuplicatedKey):
		c.JSON(http.StatusConflict, ErrorBody{Error: "Duplicate entry"})
		return
	}

	logger.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("unhandled error")

	body := ErrorBody{Error: "Internal server error"}
	if gin.IsDebugging() {
		body.Message = err.Error()
		body.Stack = string(debug.Stack())
	}
	c.JSON(http.StatusInternalServerError, body)
}

// BindError converts a gin binding failure into a 400 AppError. Validator
// failures become per-field details; malformed bodies get a single message.
func BindError(err error) *AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{Field: fieldPath(fe), Message: ruleMessage(fe)})
		}
		return NewValidation(details)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return NewBadRequest("Request body is required")
	case errors.As(err, &syntaxErr):
		return NewBadRequest("Malformed JSON body")
	case errors.As(err, &typeErr):
		return NewValidation([]FieldError{{Field: typeErr.Field, Message: "has the wrong type"}})
	}
	return NewBadRequest(err.Error())
}

// fieldPath drops the top-level struct name from the validator namespace,
// e.g. "ReorderTasksRequest.tasks[0].id" -> "tasks[0].id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx != -1 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "hexcolor":
		return "must be a valid hex color"
	case "isodate":
		return "must be a valid ISO 8601 date"
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}
