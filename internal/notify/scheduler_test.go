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

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/repository"
	"flowos.app/flowsync/internal/storage"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []models.PushMessage
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, userID string, msg models.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakePodcasts struct {
	episode *models.PodcastEpisode
	err     error
	polls   int
}

func (f *fakePodcasts) Latest(ctx context.Context) (*models.PodcastEpisode, error) {
	f.polls++
	return f.episode, f.err
}

type testEnv struct {
	sched    *Scheduler
	repo     *repository.InMemoryRepository
	notifier *fakeNotifier
	podcasts *fakePodcasts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := repository.NewInMemoryRepository(zap.NewNop())
	notifier := &fakeNotifier{}
	podcasts := &fakePodcasts{episode: &models.PodcastEpisode{ID: "ep-1", Title: "Leading through change", Link: "https://podcast.example.com/ep-1"}}
	sched := NewScheduler(
		storage.NewInMemoryKVStore(zap.NewNop()),
		repo,
		DefaultContent(),
		podcasts,
		notifier,
		time.UTC,
		noop.NewTracerProvider().Tracer("test"),
		zap.NewNop(),
	)
	sched.now = func() time.Time { return testNow }
	t.Cleanup(sched.Shutdown)
	return &testEnv{sched: sched, repo: repo, notifier: notifier, podcasts: podcasts}
}

func TestMaybeEmitDailyGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAffirmation, testNow)
	if err != nil || first == nil {
		t.Fatalf("first emission = %v, %v", first, err)
	}
	if first.Read || first.Type != models.CategoryAffirmation || first.ID == "" {
		t.Errorf("unexpected record %+v", first)
	}

	second, err := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAffirmation, testNow.Add(15*time.Hour))
	if err != nil || second != nil {
		t.Fatalf("second emission same day = %v, %v; want none", second, err)
	}

	third, err := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAffirmation, testNow.Add(17*time.Hour))
	if err != nil || third == nil {
		t.Fatalf("emission on the next day = %v, %v", third, err)
	}

	if other, _ := env.sched.MaybeEmit(ctx, "user-2", models.CategoryAffirmation, testNow); other == nil {
		t.Error("checkpoint leaked across users")
	}
	if env.notifier.count() != 3 {
		t.Errorf("pushes = %d, want 3", env.notifier.count())
	}
}

func TestMaybeEmitDayInTimezone(t *testing.T) {
	env := newTestEnv(t)
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	env.sched.loc = loc
	ctx := context.Background()

	// 23:30 and 00:30 UTC are the same evening in New York.
	late := time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC)
	if rec, _ := env.sched.MaybeEmit(ctx, "user-1", models.CategoryInsight, late); rec == nil {
		t.Fatal("expected first emission")
	}
	if rec, _ := env.sched.MaybeEmit(ctx, "user-1", models.CategoryInsight, late.Add(time.Hour)); rec != nil {
		t.Error("emitted twice on the same New York day")
	}
}

func TestMaybeEmitPreferenceFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.sched.UpdatePreferences(ctx, "user-1", models.NotificationPreferences{models.CategoryAffirmation: false}); err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if rec, _ := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAffirmation, testNow); rec != nil {
		t.Fatal("disabled category emitted")
	}

	// Re-enabling the same day still emits, the checkpoint was not consumed.
	if _, err := env.sched.UpdatePreferences(ctx, "user-1", models.NotificationPreferences{models.CategoryAffirmation: true}); err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if rec, _ := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAffirmation, testNow.Add(time.Hour)); rec == nil {
		t.Error("checkpoint consumed by a disabled category")
	}

	prefs, _ := env.sched.Preferences(ctx, "user-1")
	for _, c := range models.Categories {
		if !prefs.Enabled(c) {
			t.Errorf("category %s disabled", c)
		}
	}
}

func TestPushFailureDoesNotBlockEmission(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("gateway down")
	ctx := context.Background()

	rec, err := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAdvice, testNow)
	if err != nil || rec == nil {
		t.Fatalf("MaybeEmit = %v, %v", rec, err)
	}
	records, unread, _ := env.sched.Notifications(ctx, "user-1")
	if len(records) != 1 || unread != 1 {
		t.Errorf("log = %d records, %d unread", len(records), unread)
	}
	_, st, _ := env.sched.store.Load(ctx, "user-1")
	if st.LastEmitted[models.CategoryAdvice] != "2026-10-19" {
		t.Errorf("checkpoint = %q", st.LastEmitted[models.CategoryAdvice])
	}
}

func TestCheckPodcastDualGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.sched.CheckPodcast(ctx, "user-1", testNow)
	if err != nil || rec == nil {
		t.Fatalf("first check = %v, %v", rec, err)
	}
	if env.podcasts.polls != 1 {
		t.Fatalf("polls = %d, want 1", env.podcasts.polls)
	}

	// Within 24h the feed is not polled at all.
	env.podcasts.episode = &models.PodcastEpisode{ID: "ep-2", Title: "Second"}
	if rec, _ := env.sched.CheckPodcast(ctx, "user-1", testNow.Add(23*time.Hour)); rec != nil {
		t.Error("notified within the poll window")
	}
	if env.podcasts.polls != 1 {
		t.Errorf("polls = %d after 23h, want 1", env.podcasts.polls)
	}

	// After 25h the feed is polled, but the 7 day notification window holds.
	if rec, _ := env.sched.CheckPodcast(ctx, "user-1", testNow.Add(25*time.Hour)); rec != nil {
		t.Error("notified within the 7 day window")
	}
	if env.podcasts.polls != 2 {
		t.Errorf("polls = %d after 25h, want 2", env.podcasts.polls)
	}

	if rec, _ := env.sched.CheckPodcast(ctx, "user-1", testNow.Add(8*24*time.Hour)); rec == nil || rec.Body != "Second" {
		t.Errorf("expected new episode after 8 days, got %+v", rec)
	}
}

func TestCheckPodcastSameEpisode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if rec, _ := env.sched.CheckPodcast(ctx, "user-1", testNow); rec == nil {
		t.Fatal("expected first podcast notification")
	}
	if rec, _ := env.sched.CheckPodcast(ctx, "user-1", testNow.Add(10*24*time.Hour)); rec != nil {
		t.Error("notified twice about the same episode")
	}
}

func TestCheckPodcastFeedError(t *testing.T) {
	env := newTestEnv(t)
	env.podcasts.err = errors.New("feed unavailable")
	ctx := context.Background()

	if _, err := env.sched.CheckPodcast(ctx, "user-1", testNow); err == nil {
		t.Fatal("expected feed error")
	}
	// The failed poll still counts toward the 24h gate.
	if _, err := env.sched.CheckPodcast(ctx, "user-1", testNow.Add(time.Hour)); err != nil {
		t.Errorf("second check polled again: %v", err)
	}
	if env.podcasts.polls != 1 {
		t.Errorf("polls = %d, want 1", env.podcasts.polls)
	}
}

func TestMarkReadThroughScheduler(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, _ := env.sched.Record(ctx, "user-1", models.CategoryContent, Content{Title: "Read this", Body: "Article"})
	if rec == nil {
		t.Fatal("Record returned nil")
	}
	if err := env.sched.MarkRead(ctx, "user-1", "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead(unknown) = %v, want ErrNotFound", err)
	}
	if err := env.sched.MarkRead(ctx, "user-1", rec.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	_, unread, _ := env.sched.Notifications(ctx, "user-1")
	if unread != 0 {
		t.Errorf("unread = %d, want 0", unread)
	}
}

// failingKV fails the nth Put after arm is called.
type failingKV struct {
	storage.KVStore
	mu     sync.Mutex
	puts   int
	failAt int
}

func (f *failingKV) arm(nth int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = 0
	f.failAt = nth
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.puts++
	fail := f.puts == f.failAt
	f.mu.Unlock()
	if fail {
		return errors.New("write rejected")
	}
	return f.KVStore.Put(ctx, key, value)
}

func newFailingEnv(t *testing.T) (*testEnv, *failingKV) {
	t.Helper()
	env := newTestEnv(t)
	kv := &failingKV{KVStore: storage.NewInMemoryKVStore(zap.NewNop())}
	env.sched.store = NewStore(kv)
	return env, kv
}

func TestMaybeEmitFailedWriteKeepsDailyGate(t *testing.T) {
	env, kv := newFailingEnv(t)
	ctx := context.Background()

	kv.arm(1)
	if rec, err := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAffirmation, testNow); err == nil || rec != nil {
		t.Fatalf("MaybeEmit with failing store = %v, %v; want error", rec, err)
	}
	if records, _, _ := env.sched.Notifications(ctx, "user-1"); len(records) != 0 {
		t.Fatalf("failed emission left %d records in the log", len(records))
	}
	if env.notifier.count() != 0 {
		t.Error("pushed a notification that was never stored")
	}

	rec, err := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAffirmation, testNow.Add(time.Hour))
	if err != nil || rec == nil {
		t.Fatalf("retry = %v, %v", rec, err)
	}
	if again, _ := env.sched.MaybeEmit(ctx, "user-1", models.CategoryAffirmation, testNow.Add(2*time.Hour)); again != nil {
		t.Fatal("emitted twice on the same day")
	}
	records, _, _ := env.sched.Notifications(ctx, "user-1")
	if len(records) != 1 {
		t.Errorf("affirmations today = %d, want 1", len(records))
	}
}

func TestCheckPodcastFailedWriteLeavesNoRecord(t *testing.T) {
	env, kv := newFailingEnv(t)
	ctx := context.Background()

	// The poll checkpoint is the first write, the emission the second.
	kv.arm(2)
	if rec, err := env.sched.CheckPodcast(ctx, "user-1", testNow); err == nil || rec != nil {
		t.Fatalf("CheckPodcast with failing store = %v, %v; want error", rec, err)
	}
	l, st, err := env.sched.store.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(l.Records) != 0 || st.PodcastLastEpisodeID != "" {
		t.Errorf("partial emission stored: %d records, episode %q", len(l.Records), st.PodcastLastEpisodeID)
	}
	if !st.PodcastLastPoll.Equal(testNow) {
		t.Errorf("poll checkpoint = %v, want %v", st.PodcastLastPoll, testNow)
	}
}
