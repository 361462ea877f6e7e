package middleware

import (
	"bytes"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/pkg/logger"
)

const auditBodyLimit = 2000

// AuditLog records write operations (POST/PUT/DELETE) with the acting user
// to the structured log. Multipart bodies are not captured.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		// Only audit write operations
		if method != "POST" && method != "PUT" && method != "DELETE" {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			bodyBytes, _ := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = string(bodyBytes)
			if len(bodySnippet) > auditBodyLimit {
				bodySnippet = bodySnippet[:auditBodyLimit] + "...[truncated]"
			}
			bodySnippet = maskSensitiveFields(bodySnippet)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		logger.FromContext(c).Info().
			Bool("audit", true).
			Str("module", module).
			Str("action", action).
			Uint("user_id", GetUserID(c)).
			Str("ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("status", status).
			Str("body", bodySnippet).
			Msg(formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status))
	}
}

// parseRouteInfo extracts module and action from a Gin route pattern.
// e.g. "/api/notes/:id" + "DELETE" → module="notes", action="delete"
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(strings.TrimPrefix(fullPath, "/"), "api/")

	module = strings.SplitN(path, "/", 2)[0]
	if module == "" {
		module = "unknown"
	}

	switch method {
	case "POST":
		action = "create"
	case "PUT":
		action = "update"
	case "DELETE":
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	if strings.HasSuffix(fullPath, "/join") {
		action = "join"
	}

	return module, action
}

func formatAuditMessage(username, method, path string, status int) string {
	var b strings.Builder
	b.WriteString("[Audit] ")
	b.WriteString(username)
	b.WriteString(" ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString(" → ")
	if status >= 200 && status < 400 {
		b.WriteString("OK")
	} else {
		b.WriteString("Failed")
	}
	return b.String()
}

// maskSensitiveFields hides password, token and CSRF values in JSON and
// form-encoded bodies.
func maskSensitiveFields(body string) string {
	sensitiveKeys := []string{"password", "confirm_password", "old_password", "new_password", "credential", "csrf_token", "token"}
	for _, key := range sensitiveKeys {
		body = maskJSONValue(body, key)
		body = maskFormValue(body, key)
	}
	return body
}

// maskJSONValue does a best-effort mask of JSON string values for a given key
func maskJSONValue(body, key string) string {
	lower := strings.ToLower(body)
	idx := strings.Index(lower, "\""+key+"\"")
	if idx == -1 {
		return body
	}

	colonIdx := strings.Index(body[idx+len(key)+2:], ":")
	if colonIdx == -1 {
		return body
	}
	valueStart := idx + len(key) + 2 + colonIdx + 1

	for valueStart < len(body) && (body[valueStart] == ' ' || body[valueStart] == '\t') {
		valueStart++
	}

	if valueStart >= len(body) {
		return body
	}

	if body[valueStart] == '"' {
		endQuote := strings.Index(body[valueStart+1:], "\"")
		if endQuote == -1 {
			return body
		}
		return body[:valueStart+1] + "***" + body[valueStart+1+endQuote:]
	}

	return body
}

// maskFormValue masks key=value pairs of a form-encoded body.
func maskFormValue(body, key string) string {
	if strings.ContainsAny(body, "{\"") {
		return body
	}
	pairs := strings.Split(body, "&")
	for i, pair := range pairs {
		if k, _, found := strings.Cut(pair, "="); found && strings.EqualFold(k, key) {
			pairs[i] = k + "=***"
		}
	}
	return strings.Join(pairs, "&")
}
