package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/user/application"
	"github.com/davicafu/postmesh/internal/user/domain"
	"github.com/davicafu/postmesh/pkg/utils"
)

// UserHandler expone registro, login y gestión de refresh tokens.
type UserHandler struct {
	service *application.UserService
	log     *zap.Logger
}

func NewUserHandler(service *application.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{service: service, log: log}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register endpoint POST /api/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Validation error", zap.Error(err))
		utils.SendBadRequest(c, validationMessage(err))
		return
	}

	tokens, err := h.service.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"message":      "User registered successfully!",
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

// Login endpoint POST /api/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Validation error", zap.Error(err))
		utils.SendBadRequest(c, validationMessage(err))
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"userId":       tokens.UserID,
	})
}

// RefreshToken endpoint POST /api/auth/refresh-token
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		utils.SendBadRequest(c, "refresh token missing")
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

// Logout endpoint POST /api/auth/logout
func (h *UserHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		utils.SendBadRequest(c, "Refresh token not found")
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, domain.ErrInvalidRefreshToken) {
			utils.SendBadRequest(c, "Invalid refresh token")
			return
		}
		h.writeError(c, err)
		return
	}

	utils.SendMessage(c, http.StatusOK, "Logged out successfully")
}

func (h *UserHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUserAlreadyExists):
		utils.SendBadRequest(c, "User already exists")
	case errors.Is(err, domain.ErrInvalidCredentials):
		utils.SendBadRequest(c, "Invalid credentials")
	case errors.Is(err, domain.ErrInvalidRefreshToken):
		utils.SendUnauthorized(c, "Invalid or expired refresh token")
	default:
		h.log.Error("Auth request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		utils.SendInternalServerError(c, "Internal Server error")
	}
}

// validationMessage devuelve el primer fallo de validación en texto legible.
func validationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return "invalid request body"
	}
	fe := vErrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
