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
	"fmt"
	"sync"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/repository"
	"flowos.app/flowsync/internal/storage"
	"flowos.app/flowsync/internal/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	podcastPollInterval   = 24 * time.Hour
	podcastNotifyInterval = 7 * 24 * time.Hour
	pushTimeout           = 10 * time.Second
)

var ErrNotFound = errors.New("notification not found")

// Notifier displays a notification on the user's devices.
type Notifier interface {
	Notify(ctx context.Context, userID string, msg models.PushMessage) error
}

// PodcastSource returns the newest podcast episode, or nil when there is none.
type PodcastSource interface {
	Latest(ctx context.Context) (*models.PodcastEpisode, error)
}

// Scheduler owns every read-modify-write of a user's log and checkpoints.
// Calls for the same user are serialized.
type Scheduler struct {
	store       *Store
	commitments repository.CommitmentStore
	content     ContentProvider
	podcasts    PodcastSource
	notifier    Notifier
	loc         *time.Location
	delays      SessionDelays
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	sessMu   sync.Mutex
	sessions map[string]*Session
}

// NewScheduler creates a Scheduler. podcasts and notifier may be nil, which
// disables podcast polling and platform pushes respectively.
func NewScheduler(
	kv storage.KVStore,
	commitments repository.CommitmentStore,
	content ContentProvider,
	podcasts PodcastSource,
	notifier Notifier,
	loc *time.Location,
	tracer trace.Tracer,
	logger *zap.Logger,
) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:       NewStore(kv),
		commitments: commitments,
		content:     content,
		podcasts:    podcasts,
		notifier:    notifier,
		loc:         loc,
		delays:      DefaultSessionDelays(),
		tracer:      tracer,
		logger:      logger.Named("notify_scheduler"),
		now:         time.Now,
		userLocks:   make(map[string]*sync.Mutex),
		sessions:    make(map[string]*Session),
	}
}

// SetSessionDelays overrides the delays used by sessions started afterwards.
func (sc *Scheduler) SetSessionDelays(d SessionDelays) {
	sc.sessMu.Lock()
	defer sc.sessMu.Unlock()
	sc.delays = d
}

func (sc *Scheduler) lockUser(userID string) func() {
	sc.mu.Lock()
	l, ok := sc.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		sc.userLocks[userID] = l
	}
	sc.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func isDaily(c models.Category) bool {
	return c == models.CategoryAffirmation || c == models.CategoryInsight || c == models.CategoryAdvice
}

// MaybeEmit emits today's notification for category if the user enabled it
// and, for daily categories, nothing was emitted yet on now's calendar day.
// It returns nil when nothing was emitted. Podcasts go through CheckPodcast.
func (sc *Scheduler) MaybeEmit(ctx context.Context, userID string, category models.Category, now time.Time) (*models.NotificationRecord, error) {
	if category == models.CategoryPodcast {
		return sc.CheckPodcast(ctx, userID, now)
	}

	ctx, span := sc.tracer.Start(ctx, "Scheduler.MaybeEmit")
	defer span.End()
	span.SetAttributes(attribute.String("notify.category", string(category)))

	unlock := sc.lockUser(userID)
	defer unlock()

	prefs, err := sc.store.LoadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prefs.Enabled(category) {
		return nil, nil
	}

	l, st, err := sc.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := dayOf(now, sc.loc)
	if isDaily(category) && st.LastEmitted[category] == today {
		return nil, nil
	}

	content, ok := sc.content.Pick(category, now.In(sc.loc))
	if !ok {
		sc.logger.Warn("No content available", zap.String("category", string(category)))
		return nil, nil
	}

	rec, err := newRecord(category, content, now)
	if err != nil {
		return nil, err
	}
	l.Append(*rec)
	if isDaily(category) {
		st.LastEmitted[category] = today
	}
	if err := sc.store.Save(ctx, userID, l, st); err != nil {
		return nil, err
	}

	sc.logger.Info("Emitted notification", zap.String("userID", userID), zap.String("category", string(category)), zap.String("id", rec.ID))
	sc.push(ctx, userID, rec)
	span.SetAttributes(attribute.Bool("notify.emitted", true))
	return rec, nil
}

// Record stores a notification produced by a user action. Only the
// preference gate applies.
func (sc *Scheduler) Record(ctx context.Context, userID string, category models.Category, content Content) (*models.NotificationRecord, error) {
	unlock := sc.lockUser(userID)
	defer unlock()

	prefs, err := sc.store.LoadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prefs.Enabled(category) {
		return nil, nil
	}
	l, st, err := sc.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, err := newRecord(category, content, sc.now())
	if err != nil {
		return nil, err
	}
	l.Append(*rec)
	if err := sc.store.Save(ctx, userID, l, st); err != nil {
		return nil, err
	}
	sc.push(ctx, userID, rec)
	return rec, nil
}

// CheckPodcast polls the feed at most once per 24h and notifies about a new
// episode at most once per 7 days.
func (sc *Scheduler) CheckPodcast(ctx context.Context, userID string, now time.Time) (*models.NotificationRecord, error) {
	if sc.podcasts == nil {
		return nil, nil
	}

	ctx, span := sc.tracer.Start(ctx, "Scheduler.CheckPodcast")
	defer span.End()

	unlock := sc.lockUser(userID)
	defer unlock()

	prefs, err := sc.store.LoadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prefs.Enabled(models.CategoryPodcast) {
		return nil, nil
	}

	l, st, err := sc.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !st.PodcastLastPoll.IsZero() && now.Sub(st.PodcastLastPoll) < podcastPollInterval {
		span.SetAttributes(attribute.Bool("notify.podcast.polled", false))
		return nil, nil
	}
	st.PodcastLastPoll = now
	if err := sc.store.Save(ctx, userID, l, st); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("notify.podcast.polled", true))

	ep, err := sc.podcasts.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to poll podcast feed: %w", err)
	}
	if ep == nil {
		return nil, nil
	}
	if !st.PodcastLastNotified.IsZero() && now.Sub(st.PodcastLastNotified) < podcastNotifyInterval {
		return nil, nil
	}
	if ep.ID == st.PodcastLastEpisodeID {
		return nil, nil
	}

	rec, err := newRecord(models.CategoryPodcast, Content{
		Title:     "New podcast episode",
		Body:      ep.Title,
		ActionURL: ep.Link,
	}, now)
	if err != nil {
		return nil, err
	}
	l.Append(*rec)
	st.PodcastLastNotified = now
	st.PodcastLastEpisodeID = ep.ID
	if err := sc.store.Save(ctx, userID, l, st); err != nil {
		return nil, err
	}

	sc.logger.Info("Emitted podcast notification", zap.String("userID", userID), zap.String("episode", ep.ID))
	sc.push(ctx, userID, rec)
	return rec, nil
}

func newRecord(category models.Category, content Content, now time.Time) (*models.NotificationRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notification id: %w", err)
	}
	rec := models.NotificationRecord{
		ID:        id.String(),
		Type:      category,
		Title:     content.Title,
		Body:      content.Body,
		Timestamp: now,
		ActionURL: content.ActionURL,
	}
	return &rec, nil
}

func (sc *Scheduler) push(ctx context.Context, userID string, rec *models.NotificationRecord) {
	if sc.notifier == nil {
		return
	}
	msg := models.PushMessage{
		ID:        rec.ID,
		Kind:      string(rec.Type),
		Title:     rec.Title,
		Body:      rec.Body,
		ActionURL: rec.ActionURL,
		Time:      rec.Timestamp,
	}
	utils.BestEffort(ctx, sc.logger, "push_notification", pushTimeout, func(ctx context.Context) error {
		return sc.notifier.Notify(ctx, userID, msg)
	})
}

// Notifications returns the user's log most recent first and the unread count.
func (sc *Scheduler) Notifications(ctx context.Context, userID string) ([]models.NotificationRecord, int, error) {
	unlock := sc.lockUser(userID)
	defer unlock()

	l, _, err := sc.store.Load(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return l.Recent(), l.Unread(), nil
}

// MarkRead marks one notification as read. It returns ErrNotFound for unknown ids.
func (sc *Scheduler) MarkRead(ctx context.Context, userID, id string) error {
	unlock := sc.lockUser(userID)
	defer unlock()

	l, st, err := sc.store.Load(ctx, userID)
	if err != nil {
		return err
	}
	if !l.MarkRead(id) {
		return ErrNotFound
	}
	return sc.store.Save(ctx, userID, l, st)
}

// MarkAllRead marks the user's notifications of category read, all of them
// when category is empty.
func (sc *Scheduler) MarkAllRead(ctx context.Context, userID string, category models.Category) (int, error) {
	unlock := sc.lockUser(userID)
	defer unlock()

	l, st, err := sc.store.Load(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := l.MarkAllRead(category)
	if n == 0 {
		return 0, nil
	}
	return n, sc.store.Save(ctx, userID, l, st)
}

func (sc *Scheduler) Preferences(ctx context.Context, userID string) (models.NotificationPreferences, error) {
	return sc.store.LoadPreferences(ctx, userID)
}

// UpdatePreferences applies the given flags on top of the stored preferences.
func (sc *Scheduler) UpdatePreferences(ctx context.Context, userID string, update models.NotificationPreferences) (models.NotificationPreferences, error) {
	unlock := sc.lockUser(userID)
	defer unlock()

	prefs, err := sc.store.LoadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	for c, enabled := range update {
		prefs[c] = enabled
	}
	if err := sc.store.SavePreferences(ctx, userID, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// EmitAll runs every check once, as a session start plus all delayed checks
// would. Failures are logged per check.
func (sc *Scheduler) EmitAll(ctx context.Context, userID string) int {
	now := sc.now()
	emitted := 0
	for _, c := range []models.Category{models.CategoryAffirmation, models.CategoryInsight, models.CategoryAdvice, models.CategoryPodcast} {
		rec, err := sc.MaybeEmit(ctx, userID, c, now)
		if err != nil {
			sc.logger.Error("Emission check failed", zap.String("userID", userID), zap.String("category", string(c)), zap.Error(err))
			continue
		}
		if rec != nil {
			emitted++
		}
	}
	reminders, err := sc.CheckCommitments(ctx, userID, now)
	if err != nil {
		sc.logger.Error("Commitment check failed", zap.String("userID", userID), zap.Error(err))
	}
	return emitted + len(reminders)
}
