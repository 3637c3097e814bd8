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
	"encoding/json"
	"fmt"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/storage"
)

const dayLayout = "2006-01-02"

// SchedulerState holds the emission checkpoints of one user.
type SchedulerState struct {
	// LastEmitted maps each daily category to the last day (YYYY-MM-DD) it emitted.
	LastEmitted map[models.Category]string `json:"lastEmitted"`

	PodcastLastPoll      time.Time `json:"podcastLastPoll"`
	PodcastLastNotified  time.Time `json:"podcastLastNotified"`
	PodcastLastEpisodeID string    `json:"podcastLastEpisodeId"`

	// CommitmentsRemindedOn is the last day any commitment reminder fired.
	CommitmentsRemindedOn string `json:"commitmentsRemindedOn"`
}

func newSchedulerState() *SchedulerState {
	return &SchedulerState{LastEmitted: make(map[models.Category]string)}
}

// dayOf returns t's calendar date in loc.
func dayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// Store persists preferences and each user's log and checkpoints as JSON
// values in a KVStore.
type Store struct {
	kv storage.KVStore
}

func NewStore(kv storage.KVStore) *Store {
	return &Store{kv: kv}
}

// center is the log and checkpoints of one user. They share a single value
// so an emission and its checkpoint land in one write.
type center struct {
	Log   Log             `json:"log"`
	State *SchedulerState `json:"state"`
}

func centerKey(userID string) string { return "notify/" + userID + "/center" }
func prefsKey(userID string) string  { return "notify/" + userID + "/preferences" }

// Load returns the user's log and scheduler state, both empty when nothing is stored.
func (s *Store) Load(ctx context.Context, userID string) (*Log, *SchedulerState, error) {
	c := center{State: newSchedulerState()}
	if _, err := s.get(ctx, centerKey(userID), &c); err != nil {
		return nil, nil, err
	}
	if c.State == nil {
		c.State = newSchedulerState()
	}
	if c.State.LastEmitted == nil {
		c.State.LastEmitted = make(map[models.Category]string)
	}
	return &c.Log, c.State, nil
}

// Save writes the log and scheduler state together.
func (s *Store) Save(ctx context.Context, userID string, l *Log, st *SchedulerState) error {
	return s.put(ctx, centerKey(userID), center{Log: *l, State: st})
}

// LoadPreferences returns the stored preferences, all enabled when none are stored.
func (s *Store) LoadPreferences(ctx context.Context, userID string) (models.NotificationPreferences, error) {
	prefs := models.DefaultPreferences()
	if _, err := s.get(ctx, prefsKey(userID), &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *Store) SavePreferences(ctx context.Context, userID string, prefs models.NotificationPreferences) error {
	return s.put(ctx, prefsKey(userID), prefs)
}

func (s *Store) get(ctx context.Context, key string, v any) (bool, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
