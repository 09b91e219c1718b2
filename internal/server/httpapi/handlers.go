package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/dmitrijs2005/notematic/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthService is the part of services.AuthService the API depends on.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*services.AuthResult, error)
	Login(ctx context.Context, username, password string) (*services.AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResult, error)
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type meResponse struct {
	UserID string `json:"user_id"`
}

type handlers struct {
	svc   AuthService
	store Pinger
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, fmt.Errorf("%w: malformed request body", common.ErrInvalidInput))
		return false
	}
	return true
}

// register handles POST /auth/register.
func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// login handles POST /auth/login.
func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// refresh handles POST /auth/refresh.
func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// me handles GET /auth/me.
func (h *handlers) me(c *gin.Context) {
	c.JSON(http.StatusOK, meResponse{UserID: UserID(c)})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) ready(c *gin.Context) {
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "store": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
