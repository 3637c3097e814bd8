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

package models

import (
	"fmt"
	"time"
)

// Category is a notification category. The set is closed.
type Category string

const (
	CategoryPodcast     Category = "podcast"
	CategoryContent     Category = "content"
	CategoryInsight     Category = "insight"
	CategoryAdvice      Category = "advice"
	CategoryAffirmation Category = "affirmation"
)

// Categories lists every notification category.
var Categories = []Category{
	CategoryPodcast,
	CategoryContent,
	CategoryInsight,
	CategoryAdvice,
	CategoryAffirmation,
}

// ParseCategory validates s as a notification category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown notification category: %q", s)
}

// NotificationRecord is one entry of a user's notification log.
type NotificationRecord struct {
	ID        string    `json:"id"`
	Type      Category  `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	ActionURL string    `json:"actionUrl,omitempty"`
}

// NotificationPreferences maps each category to whether it may emit.
type NotificationPreferences map[Category]bool

// DefaultPreferences enables every category.
func DefaultPreferences() NotificationPreferences {
	prefs := make(NotificationPreferences, len(Categories))
	for _, c := range Categories {
		prefs[c] = true
	}
	return prefs
}

// Enabled reports whether c may emit. Categories missing from p are enabled.
func (p NotificationPreferences) Enabled(c Category) bool {
	enabled, ok := p[c]
	return !ok || enabled
}

// PushMessage is a best-effort platform notification sent to a user's devices.
type PushMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ActionURL string    `json:"actionUrl,omitempty"`
	Time      time.Time `json:"time"`
}

// PodcastEpisode is the newest item of the podcast feed.
type PodcastEpisode struct {
	ID        string
	Title     string
	Link      string
	Published time.Time
}
