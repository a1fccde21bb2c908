package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	handler(c)
	return w
}

func parseError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return body
}

func TestSuccess(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, map[string]string{"name": "test"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["name"] != "test" {
		t.Errorf("expected payload to be returned as-is, got %v", body)
	}
}

func TestCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Created(c, map[string]int{"id": 1})
	})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
}

func TestError_WithAppError(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NewBadRequest("bad"), http.StatusBadRequest},
		{NewUnauthorized("Access token required"), http.StatusUnauthorized},
		{NewForbidden("Access denied"), http.StatusForbidden},
		{NewNotFound("Task not found"), http.StatusNotFound},
		{NewConflict("User already exists"), http.StatusConflict},
		{NewTooLarge("File too large"), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		w := performRequest(func(c *gin.Context) {
			Error(c, tt.err)
		})

		if w.Code != tt.status {
			t.Errorf("%q: expected status %d, got %d", tt.err.Message, tt.status, w.Code)
		}
		body := parseError(t, w)
		if body.Error != tt.err.Message {
			t.Errorf("expected error %q, got %q", tt.err.Message, body.Error)
		}
	}
}

func TestError_WrappedAppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, fmt.Errorf("loading: %w", NewNotFound("Project not found")))
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestError_GormErrors(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, gorm.ErrRecordNotFound)
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	w = performRequest(func(c *gin.Context) {
		Error(c, fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey))
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if body := parseError(t, w); body.Error != "Duplicate entry" {
		t.Errorf("expected Duplicate entry, got %q", body.Error)
	}
}

func TestError_WithGenericErrorHidesDetailOutsideDebug(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("connection refused"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	body := parseError(t, w)
	if body.Error != "Internal server error" {
		t.Errorf("expected generic message, got %q", body.Error)
	}
	if body.Stack != "" || body.Message != "" {
		t.Error("stack and message must only be exposed in debug mode")
	}
}

func TestError_DebugModeIncludesStack(t *testing.T) {
	gin.SetMode(gin.DebugMode)
	defer gin.SetMode(gin.TestMode)

	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("connection refused"))
	})

	body := parseError(t, w)
	if body.Message != "connection refused" {
		t.Errorf("expected message in debug mode, got %q", body.Message)
	}
	if !strings.Contains(body.Stack, "goroutine") {
		t.Error("expected a stack trace in debug mode")
	}
}

type bindTarget struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func TestBindError_ValidationDetails(t *testing.T) {
	var target bindTarget
	req, _ := http.NewRequest("POST", "/", strings.NewReader(`{"email":"nope","password":"123"}`))
	req.Header.Set("Content-Type", "application/json")

	err := binding.JSON.Bind(req, &target)
	if err == nil {
		t.Fatal("expected validation error")
	}

	appErr := BindError(err)
	if appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", appErr.HTTPStatus)
	}
	if len(appErr.Details) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %+v", len(appErr.Details), appErr.Details)
	}
	if appErr.Details[1].Message != "must be at least 6 characters" {
		t.Errorf("unexpected min message %q", appErr.Details[1].Message)
	}
}

func TestBindError_MalformedJSON(t *testing.T) {
	var target bindTarget
	req, _ := http.NewRequest("POST", "/", strings.NewReader(`{"email":`))
	req.Header.Set("Content-Type", "application/json")

	appErr := BindError(binding.JSON.Bind(req, &target))
	if appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", appErr.HTTPStatus)
	}
	if len(appErr.Details) != 0 {
		t.Errorf("malformed body should not produce field details")
	}
}

func TestAppError_ErrorInterface(t *testing.T) {
	err := NewNotFound("user not found")
	if err.Error() != "user not found" {
		t.Errorf("expected 'user not found', got %q", err.Error())
	}

	wrapped := NewServerError("lookup failed", errors.New("timeout"))
	if !errors.Is(wrapped, wrapped.Err) {
		t.Error("AppError should unwrap to its cause")
	}
}
