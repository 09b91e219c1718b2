package httpapi

import (
	"time"

	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/dmitrijs2005/notematic/internal/logging"
	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// RequireBearer rejects requests without a valid access token and stores
// the authenticated user id in the gin context.
func RequireBearer(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := common.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, common.ErrInvalidToken)
			return
		}
		userID, err := svc.VerifyAccessToken(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the id set by RequireBearer, or "" outside protected routes.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RequestLogger logs one line per request.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error(ctx, "request failed", args...)
		case status >= 400:
			logger.Warn(ctx, "request rejected", args...)
		default:
			logger.Info(ctx, "request completed", args...)
		}
	}
}
