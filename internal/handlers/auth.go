package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/foliobase/foliobase/internal/auth"
	"github.com/foliobase/foliobase/internal/middleware"
	"github.com/foliobase/foliobase/pkg/apperr"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth *auth.Service
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// SignUpRequest represents a sign-up request
type SignUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Meta     map[string]any `json:"meta"`
}

// SignInRequest represents a sign-in request
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest carries the old and new password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// SetRoleRequest carries the role to assign
type SetRoleRequest struct {
	Role string `json:"role"`
}

// writeError maps an application error onto the HTTP response.
func writeError(c *gin.Context, err error) {
	var ae *apperr.AppError
	if !errors.As(err, &ae) {
		ae = apperr.Execution(err)
	}
	c.JSON(ae.HTTPStatus(), gin.H{"error": ae.Message, "code": ae.Code})
}

// SignUp handles POST /v1/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Meta)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// SignIn handles POST /v1/auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Session handles GET /v1/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	user, err := h.auth.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword handles PUT /v1/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), principal.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListUsers handles GET /v1/auth/users (admin only)
func (h *AuthHandler) ListUsers(c *gin.Context) {
	principal, ok := middleware.RequireAdmin(c)
	if !ok {
		return
	}
	users, err := h.auth.ListUsers(c.Request.Context(), principal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// SetRole handles PUT /v1/auth/users/:id/role (admin only, not self)
func (h *AuthHandler) SetRole(c *gin.Context) {
	principal, ok := middleware.RequireAdmin(c)
	if !ok {
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.auth.SetRole(c.Request.Context(), principal, c.Param("id"), req.Role); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Deactivate handles POST /v1/auth/users/:id/deactivate (admin only, not self)
func (h *AuthHandler) Deactivate(c *gin.Context) {
	principal, ok := middleware.RequireAdmin(c)
	if !ok {
		return
	}
	if err := h.auth.Deactivate(c.Request.Context(), principal, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
