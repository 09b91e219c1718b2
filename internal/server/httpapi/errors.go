package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrUsernameTaken), errors.Is(err, common.ErrStoreConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides wrapped dependency details from clients.
func publicMessage(status int, err error) string {
	switch {
	case errors.Is(err, common.ErrUsernameTaken):
		return common.ErrUsernameTaken.Error()
	case errors.Is(err, common.ErrInvalidInput):
		return err.Error()
	case status == http.StatusUnauthorized:
		for _, known := range []error{common.ErrInvalidCredentials, common.ErrRefreshTokenExpired, common.ErrInvalidToken} {
			if errors.Is(err, known) {
				return known.Error()
			}
		}
	case status == http.StatusConflict:
		return common.ErrStoreConflict.Error()
	case status == http.StatusServiceUnavailable:
		return common.ErrStoreUnavailable.Error()
	}
	return http.StatusText(status)
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: publicMessage(status, err), StatusCode: status})
}
