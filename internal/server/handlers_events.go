package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slated-app/slated/backend/internal/events"
)

type createEventPayload struct {
	Title       string                    `json:"title"`
	Description *string                   `json:"description"`
	StartTime   time.Time                 `json:"start_time"`
	EndTime     time.Time                 `json:"end_time"`
	Location    *string                   `json:"location"`
	IsRecurring bool                      `json:"is_recurring"`
	Recurrence  *events.RecurrencePattern `json:"recurrence_pattern"`
}

func (p createEventPayload) toInput() events.CreateInput {
	return events.CreateInput{
		Title:       p.Title,
		Description: p.Description,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Location:    p.Location,
		IsRecurring: p.IsRecurring,
		Recurrence:  p.Recurrence,
	}
}

type batchCreatePayload struct {
	Events []createEventPayload `json:"events"`
}

type shareRequestPayload struct {
	Users []shareGrantPayload `json:"users"`
}

type shareGrantPayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *httpHandler) handleCreateEvent(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request createEventPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	event, err := h.eventsService.Create(c.Request.Context(), userID, request.toInput())
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	response, err := renderEvent(event)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *httpHandler) handleCreateBatch(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request batchCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	inputs := make([]events.CreateInput, 0, len(request.Events))
	for _, payload := range request.Events {
		inputs = append(inputs, payload.toInput())
	}

	created, err := h.eventsService.CreateBatch(c.Request.Context(), userID, inputs)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	response, err := renderEvents(created)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *httpHandler) handleListEvents(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	opts := events.ListOptions{
		Skip:  parseIntQuery(c, "skip", 0),
		Limit: parseIntQuery(c, "limit", 0),
	}
	if window, ok := parseTimeQuery(c, "start_date"); ok {
		opts.StartDate = &window
	}
	if window, ok := parseTimeQuery(c, "end_date"); ok {
		opts.EndDate = &window
	}

	list, err := h.eventsService.List(c.Request.Context(), userID, opts)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	response, err := renderEvents(list)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetEvent(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	event, _, err := h.eventsService.Get(c.Request.Context(), eventID, userID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	response, err := renderEvent(event)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleUpdateEvent(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	var patch events.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var changeComment *string
	if comment := strings.TrimSpace(c.Query("change_comment")); comment != "" {
		changeComment = &comment
	}

	event, err := h.eventsService.Update(c.Request.Context(), eventID, userID, patch, changeComment)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	response, err := renderEvent(event)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleDeleteEvent(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	if err := h.eventsService.Delete(c.Request.Context(), eventID, userID); err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleShareEvent(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	var request shareRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Users) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	grants := make([]events.Grant, 0, len(request.Users))
	for _, grant := range request.Users {
		role, err := events.ParseRole(grant.Role)
		if err != nil {
			h.writeDomainError(c, err)
			return
		}
		grants = append(grants, events.Grant{UserID: grant.UserID, Role: role})
	}

	permissions, err := h.eventsService.Share(c.Request.Context(), eventID, userID, grants)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderPermissions(permissions))
}

func (h *httpHandler) handleListPermissions(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	permissions, err := h.eventsService.Permissions(c.Request.Context(), eventID, userID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderPermissions(permissions))
}

func (h *httpHandler) handleUpdatePermission(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	targetID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	role, err := events.ParseRole(c.Query("role"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	permission, err := h.eventsService.UpdatePermission(c.Request.Context(), eventID, userID, targetID, role)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, permissionResponsePayload{
		EventID: permission.EventID,
		UserID:  permission.UserID,
		Role:    permission.Role.String(),
	})
}

func (h *httpHandler) handleDeletePermission(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	targetID, ok := h.requestUserID(c)
	if !ok {
		return
	}
	if err := h.eventsService.DeletePermission(c.Request.Context(), eventID, userID, targetID); err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListVersions(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	versions, err := h.eventsService.Versions(c.Request.Context(), eventID, userID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	response := make([]versionResponsePayload, 0, len(versions))
	for i := range versions {
		payload, err := renderVersion(&versions[i])
		if err != nil {
			h.writeDomainError(c, err)
			return
		}
		response = append(response, payload)
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetVersion(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	versionNumber, ok := parseVersionParam(c, "version")
	if !ok {
		return
	}

	version, err := h.eventsService.Version(c.Request.Context(), eventID, versionNumber, userID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	response, err := renderVersion(version)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleRollback(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	versionNumber, ok := parseVersionParam(c, "version")
	if !ok {
		return
	}

	event, err := h.eventsService.Rollback(c.Request.Context(), eventID, versionNumber, userID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	response, err := renderEvent(event)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleChangelog(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	entries, err := h.eventsService.Changelog(c.Request.Context(), eventID, userID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	if entries == nil {
		entries = []events.ChangelogEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *httpHandler) handleDiff(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	fromVersion, ok := parseVersionParam(c, "v1")
	if !ok {
		return
	}
	toVersion, ok := parseVersionParam(c, "v2")
	if !ok {
		return
	}

	changes, err := h.eventsService.DiffVersions(c.Request.Context(), eventID, fromVersion, toVersion, userID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	if changes == nil {
		changes = []events.FieldChange{}
	}
	c.JSON(http.StatusOK, changes)
}

func (h *httpHandler) handleOccurrences(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	eventID, ok := h.requestEventID(c)
	if !ok {
		return
	}
	until, ok := parseTimeQuery(c, "until")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "until query parameter is required"})
		return
	}
	max := parseIntQuery(c, "max", 0)

	occurrences, err := h.eventsService.Occurrences(c.Request.Context(), eventID, userID, until, max)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"occurrences": occurrences})
}

// requestEventID validates the :id path parameter. A malformed identifier
// cannot name a stored event, so it collapses to not found.
func (h *httpHandler) requestEventID(c *gin.Context) (string, bool) {
	id, err := events.NewEventID(c.Param("id"))
	if err != nil {
		h.writeDomainError(c, events.ErrNotFound)
		return "", false
	}
	return id.String(), true
}

// requestUserID validates the :user_id path parameter the same way.
func (h *httpHandler) requestUserID(c *gin.Context) (string, bool) {
	id, err := events.NewUserID(c.Param("user_id"))
	if err != nil {
		h.writeDomainError(c, events.ErrNotFound)
		return "", false
	}
	return id.String(), true
}

func parseVersionParam(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || value < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version number"})
		return 0, false
	}
	return value, true
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func parseTimeQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
