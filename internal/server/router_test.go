package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/slated-app/slated/backend/internal/auth"
	"github.com/slated-app/slated/backend/internal/events"
	"github.com/slated-app/slated/backend/internal/notify"
	"github.com/slated-app/slated/backend/internal/users"
)

type testEnv struct {
	handler http.Handler
	sink    *notify.MemorySink
	closeFn func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:slated_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &events.Event{}, &events.EventPermission{}, &events.EventVersion{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	sink := notify.NewMemorySink(32)
	dispatcher, err := notify.NewDispatcher(notify.DispatcherConfig{Sink: sink})
	if err != nil {
		t.Fatalf("failed to construct dispatcher: %v", err)
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: events.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct users service: %v", err)
	}
	eventsService, err := events.NewService(events.ServiceConfig{
		Database:   db,
		IDProvider: events.NewUUIDProvider(),
		Notifier:   dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to construct events service: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "slated-auth",
	})

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager:  issuer,
		UsersService:  usersService,
		EventsService: eventsService,
		Notifications: sink,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	env := &testEnv{handler: handler, sink: sink, closeFn: dispatcher.Close}
	t.Cleanup(env.closeFn)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func (e *testEnv) registerAndLogin(t *testing.T, email, username string) (string, string) {
	t.Helper()

	response := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"username": username,
		"password": "correct-horse",
	})
	if response.Code != http.StatusCreated {
		t.Fatalf("register failed with %d: %s", response.Code, response.Body.String())
	}
	var registered struct {
		ID string `json:"id"`
	}
	decodeBody(t, response, &registered)

	response = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login":    username,
		"password": "correct-horse",
	})
	if response.Code != http.StatusOK {
		t.Fatalf("login failed with %d: %s", response.Code, response.Body.String())
	}
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, response, &tokens)
	return tokens.AccessToken, registered.ID
}

func eventPayload(title string, start time.Time) map[string]interface{} {
	return map[string]interface{}{
		"title":      title,
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(time.Hour).Format(time.RFC3339),
	}
}

func TestUnauthorizedRequestsAreRejected(t *testing.T) {
	env := newTestEnv(t)

	response := env.do(t, http.MethodGet, "/api/events", "", nil)
	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", response.Code)
	}

	response = env.do(t, http.MethodGet, "/api/events", "not-a-token", nil)
	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad token, got %d", response.Code)
	}
}

func TestRefreshTokenFlow(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "ada@example.com", "ada")

	response := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login":    "ada",
		"password": "correct-horse",
	})
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeBody(t, response, &tokens)

	response = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	})
	if response.Code != http.StatusOK {
		t.Fatalf("refresh failed with %d: %s", response.Code, response.Body.String())
	}

	// An access token is not accepted as a refresh token.
	response = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": tokens.AccessToken,
	})
	if response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a misused access token, got %d", response.Code)
	}
}

func TestEventLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ada@example.com", "ada")
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	response := env.do(t, http.MethodPost, "/api/events", token, eventPayload("Standup", start))
	if response.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", response.Code, response.Body.String())
	}
	var created struct {
		ID             string `json:"id"`
		CurrentVersion int64  `json:"current_version"`
	}
	decodeBody(t, response, &created)
	if created.CurrentVersion != 1 {
		t.Fatalf("expected version 1, got %d", created.CurrentVersion)
	}

	response = env.do(t, http.MethodPut, "/api/events/"+created.ID+"?change_comment=renamed", token,
		map[string]interface{}{"title": "Daily Standup"})
	if response.Code != http.StatusOK {
		t.Fatalf("update failed with %d: %s", response.Code, response.Body.String())
	}
	var updated struct {
		Title          string `json:"title"`
		CurrentVersion int64  `json:"current_version"`
	}
	decodeBody(t, response, &updated)
	if updated.Title != "Daily Standup" || updated.CurrentVersion != 2 {
		t.Fatalf("unexpected updated state: %+v", updated)
	}

	response = env.do(t, http.MethodGet, "/api/events/"+created.ID+"/history", token, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("history failed with %d: %s", response.Code, response.Body.String())
	}
	var history []struct {
		VersionNumber int64   `json:"version_number"`
		ChangeComment *string `json:"change_comment"`
	}
	decodeBody(t, response, &history)
	if len(history) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(history))
	}
	if history[1].ChangeComment == nil || *history[1].ChangeComment != "renamed" {
		t.Fatalf("expected the change comment to persist, got %v", history[1].ChangeComment)
	}

	response = env.do(t, http.MethodGet, "/api/events/"+created.ID+"/changelog", token, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("changelog failed with %d: %s", response.Code, response.Body.String())
	}
	var changelog []struct {
		VersionNumber int64 `json:"version_number"`
		Changes       []struct {
			Field string `json:"field"`
		} `json:"changes"`
	}
	decodeBody(t, response, &changelog)
	if len(changelog) != 1 || changelog[0].Changes[0].Field != "title" {
		t.Fatalf("unexpected changelog: %s", response.Body.String())
	}

	response = env.do(t, http.MethodPost, fmt.Sprintf("/api/events/%s/rollback/1", created.ID), token, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("rollback failed with %d: %s", response.Code, response.Body.String())
	}
	var restored struct {
		Title          string `json:"title"`
		CurrentVersion int64  `json:"current_version"`
	}
	decodeBody(t, response, &restored)
	if restored.Title != "Standup" || restored.CurrentVersion != 3 {
		t.Fatalf("unexpected restored state: %+v", restored)
	}

	response = env.do(t, http.MethodGet, fmt.Sprintf("/api/events/%s/diff/1/3", created.ID), token, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("diff failed with %d: %s", response.Code, response.Body.String())
	}
	var diff []struct {
		Field string `json:"field"`
	}
	decodeBody(t, response, &diff)
	if len(diff) != 0 {
		t.Fatalf("expected an empty diff after rollback, got %s", response.Body.String())
	}

	response = env.do(t, http.MethodDelete, "/api/events/"+created.ID, token, nil)
	if response.Code != http.StatusNoContent {
		t.Fatalf("delete failed with %d: %s", response.Code, response.Body.String())
	}
	response = env.do(t, http.MethodGet, "/api/events/"+created.ID, token, nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after deletion, got %d", response.Code)
	}
}

func TestConflictingCreateReturns409(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ada@example.com", "ada")
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	response := env.do(t, http.MethodPost, "/api/events", token, eventPayload("Standup", start))
	if response.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", response.Code, response.Body.String())
	}

	response = env.do(t, http.MethodPost, "/api/events", token, eventPayload("Overlap", start.Add(30*time.Minute)))
	if response.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", response.Code, response.Body.String())
	}
	var conflict struct {
		Conflicts []string `json:"conflicts"`
	}
	decodeBody(t, response, &conflict)
	if len(conflict.Conflicts) != 1 {
		t.Fatalf("expected one conflicting id, got %s", response.Body.String())
	}
}

func TestSharingControlsVisibility(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.registerAndLogin(t, "ada@example.com", "ada")
	friendToken, friendID := env.registerAndLogin(t, "bob@example.com", "bob")
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	response := env.do(t, http.MethodPost, "/api/events", ownerToken, eventPayload("Standup", start))
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, response, &created)

	// Hidden until shared.
	response = env.do(t, http.MethodGet, "/api/events/"+created.ID, friendToken, nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before sharing, got %d", response.Code)
	}

	response = env.do(t, http.MethodPost, "/api/events/"+created.ID+"/share", ownerToken, map[string]interface{}{
		"users": []map[string]string{{"user_id": friendID, "role": "VIEWER"}},
	})
	if response.Code != http.StatusOK {
		t.Fatalf("share failed with %d: %s", response.Code, response.Body.String())
	}

	response = env.do(t, http.MethodGet, "/api/events/"+created.ID, friendToken, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200 after sharing, got %d", response.Code)
	}

	// A viewer cannot edit.
	response = env.do(t, http.MethodPut, "/api/events/"+created.ID, friendToken,
		map[string]interface{}{"title": "Hijacked"})
	if response.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer update, got %d: %s", response.Code, response.Body.String())
	}

	// Promote to editor via the permission route, then the edit succeeds.
	response = env.do(t, http.MethodPut,
		fmt.Sprintf("/api/events/%s/permissions/%s?role=EDITOR", created.ID, friendID), ownerToken, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("permission update failed with %d: %s", response.Code, response.Body.String())
	}
	response = env.do(t, http.MethodPut, "/api/events/"+created.ID, friendToken,
		map[string]interface{}{"title": "Joint Standup"})
	if response.Code != http.StatusOK {
		t.Fatalf("expected editor update to pass, got %d: %s", response.Code, response.Body.String())
	}

	// Only the owner may read the permission list.
	response = env.do(t, http.MethodGet, "/api/events/"+created.ID+"/permissions", friendToken, nil)
	if response.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner permission listing, got %d", response.Code)
	}
	response = env.do(t, http.MethodGet, "/api/events/"+created.ID+"/permissions", ownerToken, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("permission listing failed with %d: %s", response.Code, response.Body.String())
	}
	var permissions []struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	decodeBody(t, response, &permissions)
	if len(permissions) != 2 {
		t.Fatalf("expected owner plus friend, got %s", response.Body.String())
	}

	// Revoke and the event disappears again.
	response = env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/events/%s/permissions/%s", created.ID, friendID), ownerToken, nil)
	if response.Code != http.StatusNoContent {
		t.Fatalf("revoke failed with %d: %s", response.Code, response.Body.String())
	}
	response = env.do(t, http.MethodGet, "/api/events/"+created.ID, friendToken, nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after revocation, got %d", response.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerAndLogin(t, "ada@example.com", "ada")
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	response := env.do(t, http.MethodPost, "/api/events", token, eventPayload("Standup", start))
	if response.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", response.Code, response.Body.String())
	}
	env.closeFn()

	feed, err := env.sink.List(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to read sink: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("expected one notification, got %#v", feed)
	}

	response = env.do(t, http.MethodGet, "/api/notifications", token, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("listing notifications failed with %d: %s", response.Code, response.Body.String())
	}
	var notifications []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		Read    bool   `json:"read"`
	}
	decodeBody(t, response, &notifications)
	if len(notifications) != 1 || notifications[0].Message != "You created a new event: Standup" {
		t.Fatalf("unexpected notifications: %s", response.Body.String())
	}

	response = env.do(t, http.MethodPost, "/api/notifications/"+notifications[0].ID+"/read", token, nil)
	if response.Code != http.StatusNoContent {
		t.Fatalf("mark read failed with %d: %s", response.Code, response.Body.String())
	}
	response = env.do(t, http.MethodGet, "/api/notifications", token, nil)
	decodeBody(t, response, &notifications)
	if !notifications[0].Read {
		t.Fatalf("expected the notification to be read, got %s", response.Body.String())
	}
}

func TestBatchCreateOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ada@example.com", "ada")
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	response := env.do(t, http.MethodPost, "/api/events/batch", token, map[string]interface{}{
		"events": []map[string]interface{}{
			eventPayload("First", start),
			eventPayload("Second", start.Add(2*time.Hour)),
		},
	})
	if response.Code != http.StatusCreated {
		t.Fatalf("batch create failed with %d: %s", response.Code, response.Body.String())
	}
	var created []struct {
		ID string `json:"id"`
	}
	decodeBody(t, response, &created)
	if len(created) != 2 {
		t.Fatalf("expected 2 created events, got %s", response.Body.String())
	}
}

func TestLogoutAcknowledgesSignOut(t *testing.T) {
	env := newTestEnv(t)

	response := env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	var body struct {
		Detail string `json:"detail"`
	}
	decodeBody(t, response, &body)
	if body.Detail != "Successfully logged out" {
		t.Fatalf("unexpected detail %q", body.Detail)
	}
}

func TestMalformedEventIDCollapsesToNotFound(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "ids@example.com", "ids")

	oversized := strings.Repeat("x", 200)
	response := env.do(t, http.MethodGet, "/api/events/"+oversized, token, nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an oversized id, got %d: %s", response.Code, response.Body.String())
	}

	response = env.do(t, http.MethodPut, "/api/events/%20/permissions/"+oversized+"?role=EDITOR", token, nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed identifiers, got %d: %s", response.Code, response.Body.String())
	}
}
