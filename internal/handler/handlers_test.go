/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"flowos.app/flowsync/internal/calendarsync"
	"flowos.app/flowsync/internal/config"
	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/notify"
	"flowos.app/flowsync/internal/repository"
	"flowos.app/flowsync/internal/service"
	"flowos.app/flowsync/internal/storage"
	"flowos.app/flowsync/internal/tokengate"
	"flowos.app/flowsync/internal/view"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type stubAuth map[string]string

func (s stubAuth) Authenticate(ctx context.Context, accessToken string) (string, error) {
	if id, ok := s[accessToken]; ok {
		return id, nil
	}
	return "", service.ErrInvalidCredentials
}

type stubCalendar struct{ events []models.RemoteEvent }

func (s *stubCalendar) ListEvents(ctx context.Context, accessToken string, from, to time.Time) ([]models.RemoteEvent, error) {
	return s.events, nil
}

func (s *stubCalendar) RevokeToken(ctx context.Context, token string) error { return nil }

type stubOAuth struct{ code string }

func (s *stubOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (s *stubOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	s.code = code
	return &oauth2.Token{AccessToken: "google-access", RefreshToken: "google-refresh", Expiry: time.Now().Add(time.Hour)}, nil
}

type testServer struct {
	router *gin.Engine
	repo   *repository.InMemoryRepository
	oauth  *stubOAuth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	tracer := noop.NewTracerProvider().Tracer("test")

	cfg := &config.Config{AppBaseURL: "http://localhost:8080", Location: time.UTC}
	repo := repository.NewInMemoryRepository(logger)
	cal := &stubCalendar{events: []models.RemoteEvent{{ID: "evt_123", Title: "Planning"}}}
	syncService := calendarsync.NewService(repo, repo, tokengate.NewGate(repo, nil, logger), cal, tracer, logger)
	sched := notify.NewScheduler(storage.NewInMemoryKVStore(logger), repo, notify.DefaultContent(), nil, nil, time.UTC, tracer, logger)
	t.Cleanup(sched.Shutdown)
	views, err := view.NewHTMLTemplateManager(logger)
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	oauth := &stubOAuth{}

	h := NewHttpHandlers(logger, cfg, stubAuth{"good": "user-1"}, syncService, repo, sched, oauth, views, tracer)
	router := gin.New()
	h.RegisterRoutes(router)
	return &testServer{router: router, repo: repo, oauth: oauth}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func TestCalendarSyncRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calendar-sync", strings.NewReader(`{"action":"fetch_events"}`))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no header: status %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/calendar-sync", strings.NewReader(`{"action":"fetch_events"}`))
	req.Header.Set("Authorization", "Bearer forged")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status %d, want 401", w.Code)
	}
}

func TestCalendarSyncNoConnection(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/calendar-sync", `{"action":"fetch_events"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
	body := decode(t, w)
	if body["error"] != "No calendar connected" || body["needsAuth"] != true || body["reason"] != "not_connected" {
		t.Errorf("body = %v", body)
	}
}

func TestCalendarSyncRateThenFetch(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(http.MethodPost, "/api/v1/calendar-sync", `{"action":"save_tokens","accessToken":"a","refreshToken":"r","expiresIn":3600}`); w.Code != http.StatusOK {
		t.Fatalf("save_tokens: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodPost, "/api/v1/calendar-sync", `{"action":"rate_event","eventId":"evt_123","impactRating":-1}`); w.Code != http.StatusOK {
		t.Fatalf("rate_event: %d %s", w.Code, w.Body.String())
	}

	w := s.do(http.MethodPost, "/api/v1/calendar-sync", `{"action":"fetch_events"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("fetch_events: %d %s", w.Code, w.Body.String())
	}
	events := decode(t, w)["events"].([]any)
	first := events[0].(map[string]any)
	if first["id"] != "evt_123" || first["impactRating"] != float64(-1) || first["postMeetingReflection"] != nil {
		t.Errorf("event = %v", first)
	}

	if w := s.do(http.MethodPost, "/api/v1/calendar-sync", `{"action":"explode"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown action: status %d, want 400", w.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/notifications/content", `{"title":"Read this","body":"On delegation"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("content: %d %s", w.Code, w.Body.String())
	}
	id := decode(t, w)["notification"].(map[string]any)["id"].(string)

	w = s.do(http.MethodGet, "/api/v1/notifications", "")
	if got := decode(t, w)["unread"]; got != float64(1) {
		t.Errorf("unread = %v, want 1", got)
	}

	if w := s.do(http.MethodPost, "/api/v1/notifications/"+id+"/read", ""); w.Code != http.StatusOK {
		t.Errorf("read: %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/v1/notifications/missing/read", ""); w.Code != http.StatusNotFound {
		t.Errorf("read missing: %d, want 404", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/v1/notifications/read-all?type=bogus", ""); w.Code != http.StatusBadRequest {
		t.Errorf("read-all bogus type: %d, want 400", w.Code)
	}

	if w := s.do(http.MethodPut, "/api/v1/notifications/preferences", `{"weather":true}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown preference: %d, want 400", w.Code)
	}
	w = s.do(http.MethodPut, "/api/v1/notifications/preferences", `{"content":false}`)
	if w.Code != http.StatusOK || decode(t, w)["content"] != false {
		t.Fatalf("preferences: %d %s", w.Code, w.Body.String())
	}
	w = s.do(http.MethodPost, "/api/v1/notifications/content", `{"title":"Muted","body":"x"}`)
	if w.Code != http.StatusOK || decode(t, w)["notification"] != nil {
		t.Errorf("disabled category recorded: %d %s", w.Code, w.Body.String())
	}
}

func TestSessionEndpoints(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(http.MethodDelete, "/api/v1/notifications/session", ""); w.Code != http.StatusNotFound {
		t.Errorf("stop without session: %d, want 404", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/v1/notifications/session", ""); w.Code != http.StatusAccepted {
		t.Fatalf("start: %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/v1/notifications/session", ""); w.Code != http.StatusNoContent {
		t.Errorf("stop: %d, want 204", w.Code)
	}
}

func TestCommitmentEndpoints(t *testing.T) {
	s := newTestServer(t)
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	if w := s.do(http.MethodPost, "/api/v1/commitments", `{"commitment":"","deadline":"2026-01-01"}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty commitment: %d, want 400", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/v1/commitments", `{"commitment":"x","deadline":"next week"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad deadline: %d, want 400", w.Code)
	}
	w := s.do(http.MethodPost, "/api/v1/commitments", `{"commitment":"Finish the board deck","deadline":"`+tomorrow+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["daysRemaining"]; got != float64(1) {
		t.Errorf("daysRemaining = %v, want 1", got)
	}

	w = s.do(http.MethodGet, "/api/v1/commitments/reminders", "")
	reminders := decode(t, w)["reminders"].([]any)
	if len(reminders) != 1 || reminders[0].(map[string]any)["title"] != "Due tomorrow" {
		t.Errorf("reminders = %v", reminders)
	}
}

func TestCalendarOAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/calendar/login?token=good", nil))
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("login: %d", w.Code)
	}
	loc, _ := url.Parse(w.Header().Get("Location"))
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("no state in redirect")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calendar/callback?code=abc&state="+url.QueryEscape(state), nil)
	for _, ck := range w.Result().Cookies() {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("callback: %d %s", w.Code, w.Body.String())
	}
	if s.oauth.code != "abc" {
		t.Errorf("exchanged code = %q", s.oauth.code)
	}
	rec, _ := s.repo.GetToken(context.Background(), "user-1")
	if rec == nil || rec.AccessToken != "google-access" || rec.RefreshToken != "google-refresh" {
		t.Errorf("stored token = %+v", rec)
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/calendar/callback?code=abc&state=forged", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("forged state: %d, want 400", w.Code)
	}
}
