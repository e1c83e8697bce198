package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slated-app/slated/backend/internal/users"
)

type registerRequestPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequestPayload struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponsePayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type userResponsePayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.usersService.Register(c.Request.Context(), users.RegisterInput{
		Email:    request.Email,
		Username: request.Username,
		Password: request.Password,
	})
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		return
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "username already taken"})
		return
	case errors.Is(err, users.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration fields"})
		return
	case err != nil:
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	c.JSON(http.StatusCreated, userResponsePayload{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.usersService.Authenticate(c.Request.Context(), request.Login, request.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	pair, err := h.tokens.IssueTokens(user.ID)
	if err != nil {
		h.logger.Error("failed to issue tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.AccessExpiresIn,
		TokenType:    "Bearer",
	})
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	var request refreshRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	subject, err := h.tokens.ValidateRefreshToken(request.RefreshToken)
	if err != nil {
		h.logger.Warn("refresh token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	pair, err := h.tokens.IssueTokens(subject)
	if err != nil {
		h.logger.Error("failed to issue tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.AccessExpiresIn,
		TokenType:    "Bearer",
	})
}

// handleLogout acknowledges a sign-out. Tokens are stateless, so the client
// discards them; nothing is revoked server side.
func (h *httpHandler) handleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"detail": "Successfully logged out"})
}
