package middleware

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/services"
)

const maxAuditBody = 2000

var sensitiveValue = regexp.MustCompile(`(?i)("(?:password|token|secret|access_token)"\s*:\s*")[^"]*(")`)

// AuditLog records write operations (POST/PUT/PATCH/DELETE) to system_logs.
// Multipart bodies are not captured.
func AuditLog(logs *services.SystemLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "PATCH" && method != "DELETE" {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			bodyBytes, _ := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody+1))
			rest := c.Request.Body
			c.Request.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(bodyBytes), rest), rest}

			bodySnippet = string(bodyBytes)
			if len(bodySnippet) > maxAuditBody {
				bodySnippet = bodySnippet[:maxAuditBody] + "...[truncated]"
			}
			bodySnippet = maskSensitiveFields(bodySnippet)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		level := services.LogLevelInfo
		if status >= 500 {
			level = services.LogLevelError
		} else if status >= 400 {
			level = services.LogLevelWarning
		}

		var uid *string
		actor := "anonymous"
		if user := CurrentUser(c); user != nil {
			uid = &user.ID
			actor = user.Email
		}

		logs.Write(services.LogEntry{
			Level:     level,
			Module:    module,
			Action:    action,
			Message:   formatAuditMessage(actor, method, c.Request.URL.Path, status),
			UserID:    uid,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   bodySnippet,
			},
		})
	}
}

// parseRouteInfo extracts module and action from a route pattern,
// e.g. "/api/projects/:id" + "PUT" gives ("Projects", "Update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	module = strings.SplitN(path, "/", 2)[0]
	if module == "" {
		module = "unknown"
	}
	module = strings.ToUpper(module[:1]) + module[1:]

	switch method {
	case "POST":
		action = "Create"
	case "PUT", "PATCH":
		action = "Update"
	case "DELETE":
		action = "Delete"
	default:
		action = method
	}

	// sub-resources read better as their own action
	switch {
	case strings.HasSuffix(fullPath, "/reorder"):
		action = "Reorder"
	case strings.HasSuffix(fullPath, "/comments"):
		action = "Comment"
	case strings.Contains(fullPath, "/members"):
		action = "Member" + action
	case strings.HasSuffix(fullPath, "/login"):
		action = "Login"
	case strings.HasSuffix(fullPath, "/register"):
		action = "Register"
	case strings.HasSuffix(fullPath, "/demo"):
		action = "Demo"
	}
	return module, action
}

func formatAuditMessage(actor, method, path string, status int) string {
	outcome := "Failed"
	if status >= 200 && status < 300 {
		outcome = "OK"
	}
	return "[Audit] " + actor + " " + method + " " + path + " -> " + outcome
}

// maskSensitiveFields blanks credential values in a JSON body.
func maskSensitiveFields(body string) string {
	return sensitiveValue.ReplaceAllString(body, "${1}***${2}")
}
