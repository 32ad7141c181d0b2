package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	apiKeyHeader    = "X-API-Key"
	apiKeyScheme    = "ApiKey"
	apiKeyChallenge = `APIKey header="X-API-Key"`
)

type authError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIKeyAuth guards the admin routes. The key is read from X-API-Key or from
// "Authorization: ApiKey <key>". An empty configured key disables the check.
func APIKeyAuth(key string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		provided, ok := presentedKey(c.Request)
		if !ok {
			c.Header("WWW-Authenticate", apiKeyChallenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, authError{
				Error: "admin routes need an API key",
				Code:  "api_key_missing",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			logger.Warn("rejected admin request",
				zap.String("path", c.FullPath()),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, authError{
				Error: "API key not accepted",
				Code:  "api_key_invalid",
			})
			return
		}
		c.Next()
	}
}

func presentedKey(r *http.Request) (string, bool) {
	if v := strings.TrimSpace(r.Header.Get(apiKeyHeader)); v != "" {
		return v, true
	}
	scheme, v, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if found && strings.EqualFold(scheme, apiKeyScheme) {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}
