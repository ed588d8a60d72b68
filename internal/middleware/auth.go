package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/service"
)

const (
	PlatformAccessKeyIDHeader     = "X-Platform-Access-Key-Id"
	PlatformSecretAccessKeyHeader = "X-Platform-Secret-Access-Key"
	InternalKeyHeader             = "X-Internal-Key"

	accessKeyContextKey = "accessKey"
)

// PlatformAuthenticator resolves a platform access key pair.
type PlatformAuthenticator interface {
	Authenticate(ctx context.Context, accessKeyID, secret string) (*domain.AccessKey, error)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: message, Code: code})
}

// PlatformAuth authenticates the calling platform from its access key
// headers and stores the key on the context.
func PlatformAuth(auth PlatformAuthenticator, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessKeyID := c.GetHeader(PlatformAccessKeyIDHeader)
		secret := c.GetHeader(PlatformSecretAccessKeyHeader)

		key, err := auth.Authenticate(c.Request.Context(), accessKeyID, secret)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthorized) {
				logger.WithError(err).Error("platform authentication failed")
				_ = c.Error(err)
			}
			abortWithError(c, http.StatusUnauthorized, "REQUIRED_ACCESS_KEY", "platform access key required")
			return
		}

		c.Set(accessKeyContextKey, key)
		c.Next()
	}
}

// AccessKeyFrom returns the access key stored by PlatformAuth.
func AccessKeyFrom(c *gin.Context) (*domain.AccessKey, bool) {
	v, ok := c.Get(accessKeyContextKey)
	if !ok {
		return nil, false
	}
	key, ok := v.(*domain.AccessKey)
	return key, ok
}

// RequirePermission rejects platforms whose access key lacks permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := AccessKeyFrom(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "REQUIRED_ACCESS_KEY", "platform access key required")
			return
		}
		if !key.Allows(permission) {
			abortWithError(c, http.StatusForbidden, "ACCESS_DENIED", "missing permission "+permission)
			return
		}
		c.Next()
	}
}

// InternalAuth admits internal callers presenting the shared API key as a
// bearer token or in X-Internal-Key. An empty configured key admits nobody.
func InternalAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(InternalKeyHeader)
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if apiKey == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "REQUIRED_ACCESS_KEY", "internal access key required")
			return
		}
		c.Next()
	}
}
