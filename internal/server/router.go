package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slated-app/slated/backend/internal/auth"
	"github.com/slated-app/slated/backend/internal/events"
	"github.com/slated-app/slated/backend/internal/notify"
	"github.com/slated-app/slated/backend/internal/users"
)

const userIDContextKey = "slated_user_id"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingUsersService  = errors.New("users service dependency required")
	errMissingEventsService = errors.New("events service dependency required")
	errMissingNotifications = errors.New("notification sink dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates the backend's token pairs.
type TokenManager interface {
	IssueTokens(subject string) (auth.TokenPair, error)
	ValidateAccessToken(token string) (string, error)
	ValidateRefreshToken(token string) (string, error)
}

// Dependencies carries the collaborators required by the HTTP layer.
type Dependencies struct {
	TokenManager  TokenManager
	UsersService  *users.Service
	EventsService *events.Service
	Notifications notify.Sink
	Logger        *zap.Logger
}

// NewHTTPHandler assembles the gin router for the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.EventsService == nil {
		return nil, errMissingEventsService
	}
	if deps.Notifications == nil {
		return nil, errMissingNotifications
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.TokenManager,
		usersService:  deps.UsersService,
		eventsService: deps.EventsService,
		notifications: deps.Notifications,
		logger:        logger,
	}

	api := router.Group("/api")
	api.POST("/auth/register", handler.handleRegister)
	api.POST("/auth/login", handler.handleLogin)
	api.POST("/auth/refresh", handler.handleRefresh)
	api.POST("/auth/logout", handler.handleLogout)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)

	eventRoutes := protected.Group("/events")
	eventRoutes.POST("", handler.handleCreateEvent)
	eventRoutes.GET("", handler.handleListEvents)
	eventRoutes.POST("/batch", handler.handleCreateBatch)
	eventRoutes.GET("/:id", handler.handleGetEvent)
	eventRoutes.PUT("/:id", handler.handleUpdateEvent)
	eventRoutes.DELETE("/:id", handler.handleDeleteEvent)
	eventRoutes.POST("/:id/share", handler.handleShareEvent)
	eventRoutes.GET("/:id/permissions", handler.handleListPermissions)
	eventRoutes.PUT("/:id/permissions/:user_id", handler.handleUpdatePermission)
	eventRoutes.DELETE("/:id/permissions/:user_id", handler.handleDeletePermission)
	eventRoutes.GET("/:id/history", handler.handleListVersions)
	eventRoutes.GET("/:id/history/:version", handler.handleGetVersion)
	eventRoutes.POST("/:id/rollback/:version", handler.handleRollback)
	eventRoutes.GET("/:id/changelog", handler.handleChangelog)
	eventRoutes.GET("/:id/diff/:v1/:v2", handler.handleDiff)
	eventRoutes.GET("/:id/occurrences", handler.handleOccurrences)

	notificationRoutes := protected.Group("/notifications")
	notificationRoutes.GET("", handler.handleListNotifications)
	notificationRoutes.POST("/read", handler.handleMarkAllRead)
	notificationRoutes.POST("/:id/read", handler.handleMarkRead)

	return router, nil
}

type httpHandler struct {
	tokens        TokenManager
	usersService  *users.Service
	eventsService *events.Service
	notifications notify.Sink
	logger        *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// writeDomainError maps the events error taxonomy onto HTTP statuses.
func (h *httpHandler) writeDomainError(c *gin.Context, err error) {
	var validationErr *events.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
		return
	}
	var conflictErr *events.ConflictError
	if errors.As(err, &conflictErr) {
		ids := make([]string, 0, len(conflictErr.Conflicts))
		for _, conflict := range conflictErr.Conflicts {
			ids = append(ids, conflict.ID)
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":     conflictErr.Error(),
			"conflicts": ids,
		})
		return
	}
	if errors.Is(err, events.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, events.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	h.logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
