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

package calendarsync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/repository"
	"flowos.app/flowsync/internal/service"
	"flowos.app/flowsync/internal/tokengate"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type fakeCalendar struct {
	events   []models.RemoteEvent
	err      error
	calls    int
	from, to time.Time
	revoked  []string
}

func (f *fakeCalendar) ListEvents(ctx context.Context, accessToken string, from, to time.Time) ([]models.RemoteEvent, error) {
	f.calls++
	f.from, f.to = from, to
	return f.events, f.err
}

func (f *fakeCalendar) RevokeToken(ctx context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	return errors.New("revocation endpoint unavailable")
}

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestService(cal *fakeCalendar) (*Service, *repository.InMemoryRepository) {
	repo := repository.NewInMemoryRepository(zap.NewNop())
	gate := tokengate.NewGate(repo, nil, zap.NewNop())
	s := NewService(repo, repo, gate, cal, noop.NewTracerProvider().Tracer("test"), zap.NewNop())
	s.now = func() time.Time { return testNow }
	return s, repo
}

func connect(t *testing.T, repo *repository.InMemoryRepository, userID string) {
	t.Helper()
	err := repo.SaveToken(context.Background(), &models.TokenRecord{
		UserID:       userID,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
}

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	return serr
}

func TestFetchEventsWithoutConnection(t *testing.T) {
	cal := &fakeCalendar{}
	s, _ := newTestService(cal)

	_, err := s.Dispatch(context.Background(), "user-1", FetchEvents{})
	serr := asError(t, err)
	if serr.Message != "No calendar connected" || !serr.NeedsAuth() || serr.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("got %+v (status %d)", serr, serr.HTTPStatus())
	}
	if serr.Reason != tokengate.ReasonNotConnected {
		t.Errorf("Reason = %q", serr.Reason)
	}
	if cal.calls != 0 {
		t.Error("provider must not be called without a connection")
	}
}

func TestFetchEventsExpiredWithoutRefresher(t *testing.T) {
	s, repo := newTestService(&fakeCalendar{})
	_ = repo.SaveToken(context.Background(), &models.TokenRecord{
		UserID: "user-1", AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Minute),
	})

	_, err := s.Dispatch(context.Background(), "user-1", FetchEvents{})
	serr := asError(t, err)
	if serr.Kind != KindReauthRequired || serr.Reason != tokengate.ReasonExpiredRefreshUnimplemented {
		t.Errorf("got %+v", serr)
	}
}

func TestFetchEventsMergesAnnotations(t *testing.T) {
	cal := &fakeCalendar{events: []models.RemoteEvent{remote("evt_1"), remote("evt_2")}}
	s, repo := newTestService(cal)
	connect(t, repo, "user-1")
	ctx := context.Background()

	if _, err := s.Dispatch(ctx, "user-1", RateEvent{EventID: "evt_2", ImpactRating: 1}); err != nil {
		t.Fatalf("rate_event: %v", err)
	}

	resp, err := s.Dispatch(ctx, "user-1", FetchEvents{})
	if err != nil {
		t.Fatalf("fetch_events: %v", err)
	}
	events := resp["events"].([]models.MergedEvent)
	if len(events) != 2 || events[0].ImpactRating != nil || *events[1].ImpactRating != 1 {
		t.Errorf("unexpected merge %+v", events)
	}
	if !cal.from.Equal(testNow) || cal.to.Sub(cal.from) != 7*24*time.Hour {
		t.Errorf("window = %v..%v", cal.from, cal.to)
	}
}

func TestRateEventBeforeAnnotationExists(t *testing.T) {
	cal := &fakeCalendar{events: []models.RemoteEvent{remote("evt_123")}}
	s, repo := newTestService(cal)
	connect(t, repo, "user-1")
	ctx := context.Background()

	if _, err := s.Dispatch(ctx, "user-1", RateEvent{EventID: "evt_123", ImpactRating: -1}); err != nil {
		t.Fatalf("rate_event: %v", err)
	}
	annotations, _ := repo.ListAnnotations(ctx, "user-1")
	if len(annotations) != 1 || *annotations[0].ImpactRating != -1 {
		t.Fatalf("annotation not created: %+v", annotations)
	}

	resp, err := s.Dispatch(ctx, "user-1", FetchEvents{})
	if err != nil {
		t.Fatalf("fetch_events: %v", err)
	}
	events := resp["events"].([]models.MergedEvent)
	if events[0].ImpactRating == nil || *events[0].ImpactRating != -1 {
		t.Errorf("rating not visible on merge: %+v", events[0])
	}
}

func TestRateEventIdempotent(t *testing.T) {
	s, repo := newTestService(&fakeCalendar{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.Dispatch(ctx, "user-1", RateEvent{EventID: "evt_1", ImpactRating: 2}); err != nil {
			t.Fatalf("rate_event #%d: %v", i, err)
		}
	}
	if _, err := s.Dispatch(ctx, "user-1", AddReflection{EventID: "evt_1", Reflection: "Clear outcome"}); err != nil {
		t.Fatalf("add_reflection: %v", err)
	}

	annotations, _ := repo.ListAnnotations(ctx, "user-1")
	if len(annotations) != 1 {
		t.Fatalf("expected one annotation, got %d", len(annotations))
	}
	a := annotations[0]
	if *a.ImpactRating != 2 || a.PostMeetingReflection == nil || *a.PostMeetingReflection != "Clear outcome" {
		t.Errorf("annotation = %+v", a)
	}
}

func TestAnnotationStoresEventDetails(t *testing.T) {
	s, repo := newTestService(&fakeCalendar{})
	ctx := context.Background()
	ev := &models.EventDetails{
		Title:     "Quarterly review",
		StartTime: testNow.Add(2 * time.Hour),
		EndTime:   testNow.Add(3 * time.Hour),
	}

	if _, err := s.Dispatch(ctx, "user-1", SaveInsight{EventID: "evt_7", Insight: "Ask about budget", Event: ev}); err != nil {
		t.Fatalf("save_insight: %v", err)
	}
	// A later write without details keeps the stored metadata.
	if _, err := s.Dispatch(ctx, "user-1", RateEvent{EventID: "evt_7", ImpactRating: 1}); err != nil {
		t.Fatalf("rate_event: %v", err)
	}

	annotations, _ := repo.ListAnnotations(ctx, "user-1")
	if len(annotations) != 1 {
		t.Fatalf("expected one annotation, got %d", len(annotations))
	}
	a := annotations[0]
	if a.Title != "Quarterly review" || !a.StartTime.Equal(ev.StartTime) || !a.EndTime.Equal(ev.EndTime) {
		t.Errorf("event details not stored: %+v", a)
	}
	if a.ImpactRating == nil || *a.ImpactRating != 1 {
		t.Errorf("rating = %v", a.ImpactRating)
	}
}

func TestDisconnectRemovesEverything(t *testing.T) {
	cal := &fakeCalendar{}
	s, repo := newTestService(cal)
	connect(t, repo, "user-1")
	connect(t, repo, "user-2")
	ctx := context.Background()

	_, _ = s.Dispatch(ctx, "user-1", SaveInsight{EventID: "evt_1", Insight: "Bring the numbers"})
	_, _ = s.Dispatch(ctx, "user-2", RateEvent{EventID: "evt_1", ImpactRating: 1})

	resp, err := s.Dispatch(ctx, "user-1", Disconnect{})
	if err != nil {
		t.Fatalf("disconnect must succeed even when revocation fails: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("resp = %v", resp)
	}
	if len(cal.revoked) != 1 || cal.revoked[0] != "refresh" {
		t.Errorf("revoked = %v", cal.revoked)
	}

	if rec, _ := repo.GetToken(ctx, "user-1"); rec != nil {
		t.Error("token survived disconnect")
	}
	if a, _ := repo.ListAnnotations(ctx, "user-1"); len(a) != 0 {
		t.Errorf("annotations survived disconnect: %+v", a)
	}
	if a, _ := repo.ListAnnotations(ctx, "user-2"); len(a) != 1 {
		t.Error("disconnect touched another user's annotations")
	}

	_, err = s.Dispatch(ctx, "user-1", FetchEvents{})
	if serr := asError(t, err); !serr.NeedsAuth() {
		t.Errorf("fetch after disconnect: %+v", serr)
	}
}

func TestSaveTokens(t *testing.T) {
	s, repo := newTestService(&fakeCalendar{})
	ctx := context.Background()

	if _, err := s.Dispatch(ctx, "user-1", SaveTokens{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 3600}); err != nil {
		t.Fatalf("save_tokens: %v", err)
	}
	rec, _ := repo.GetToken(ctx, "user-1")
	if rec == nil || !rec.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("record = %+v", rec)
	}

	if _, err := s.Dispatch(ctx, "user-1", SaveTokens{AccessToken: "a2", ExpiresIn: 60}); err != nil {
		t.Fatalf("save_tokens: %v", err)
	}
	rec, _ = repo.GetToken(ctx, "user-1")
	if rec.AccessToken != "a2" || rec.RefreshToken != "r1" {
		t.Errorf("record after re-consent = %+v", rec)
	}
}

func TestFetchEventsProviderFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"rate limited", &service.ProviderError{StatusCode: 429, Err: errors.New("slow down")}, KindTransientDependency, 429},
		{"quota", &service.ProviderError{StatusCode: 402, Err: errors.New("pay up")}, KindTransientDependency, 402},
		{"unauthorized", &service.ProviderError{StatusCode: 401, Err: errors.New("bad token")}, KindRemoteProvider, 400},
		{"network", errors.New("connection reset"), KindRemoteProvider, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo := newTestService(&fakeCalendar{err: tt.err})
			connect(t, repo, "user-1")

			_, err := s.Dispatch(context.Background(), "user-1", FetchEvents{})
			serr := asError(t, err)
			if serr.Kind != tt.kind || serr.HTTPStatus() != tt.status {
				t.Errorf("got kind %s status %d, want %s %d", serr.Kind, serr.HTTPStatus(), tt.kind, tt.status)
			}
		})
	}
}
