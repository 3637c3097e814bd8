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

import "time"

// TokenRecord is a user's external-calendar OAuth token pair. There is at most one per user.
type TokenRecord struct {
	UserID       string    `gorm:"primaryKey;size:64" firestore:"userId" json:"userId"`
	AccessToken  string    `gorm:"not null" firestore:"accessToken" json:"-"`
	RefreshToken string    `firestore:"refreshToken,omitempty" json:"-"`
	ExpiresAt    time.Time `gorm:"not null" firestore:"expiresAt" json:"expiresAt"`
	UpdatedAt    time.Time `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

func (TokenRecord) TableName() string { return "calendar_tokens" }

// Expired reports whether the access token can no longer be used at now.
func (t *TokenRecord) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// CalendarEventAnnotation holds the locally owned data attached to a remote event.
// (UserID, ExternalEventID) is unique.
type CalendarEventAnnotation struct {
	ID                    uint      `gorm:"primaryKey" firestore:"-" json:"-"`
	UserID                string    `gorm:"uniqueIndex:idx_calendar_events_user_event;size:64;not null" firestore:"userId" json:"-"`
	ExternalEventID       string    `gorm:"uniqueIndex:idx_calendar_events_user_event;size:255;not null" firestore:"externalEventId" json:"externalEventId"`
	Title                 string    `firestore:"title,omitempty" json:"title,omitempty"`
	Description           string    `firestore:"description,omitempty" json:"description,omitempty"`
	StartTime             time.Time `firestore:"startTime,omitempty" json:"startTime,omitempty"`
	EndTime               time.Time `firestore:"endTime,omitempty" json:"endTime,omitempty"`
	ImpactRating          *int      `firestore:"impactRating" json:"impactRating"`
	PreMeetingInsight     *string   `firestore:"preMeetingInsight" json:"preMeetingInsight"`
	PostMeetingReflection *string   `firestore:"postMeetingReflection" json:"postMeetingReflection"`
	UpdatedAt             time.Time `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

func (CalendarEventAnnotation) TableName() string { return "calendar_events" }

// EventDetails is the remote event metadata a client sends along with an
// annotation, so annotations stay identifiable once the event is gone.
type EventDetails struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// AnnotationPatch lists the annotation fields a single write changes. Nil fields are left as stored.
type AnnotationPatch struct {
	ImpactRating          *int
	PreMeetingInsight     *string
	PostMeetingReflection *string
	Event                 *EventDetails
}

// Apply copies the set fields of p onto a.
func (p AnnotationPatch) Apply(a *CalendarEventAnnotation) {
	if p.Event != nil {
		a.Title = p.Event.Title
		a.Description = p.Event.Description
		a.StartTime = p.Event.StartTime
		a.EndTime = p.Event.EndTime
	}
	if p.ImpactRating != nil {
		v := *p.ImpactRating
		a.ImpactRating = &v
	}
	if p.PreMeetingInsight != nil {
		v := *p.PreMeetingInsight
		a.PreMeetingInsight = &v
	}
	if p.PostMeetingReflection != nil {
		v := *p.PostMeetingReflection
		a.PostMeetingReflection = &v
	}
}

// TimeRange is the canonical form of a provider event's timing, whether the
// provider sent a timed or an all-day event.
type TimeRange struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"allDay"`
}

// RemoteEvent is a provider event after normalization.
type RemoteEvent struct {
	ID          string
	Title       string
	Description string
	Location    string
	HTMLLink    string
	Time        TimeRange
}

// MergedEvent is a remote event combined with its annotation, if any.
type MergedEvent struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description,omitempty"`
	Location              string    `json:"location,omitempty"`
	HTMLLink              string    `json:"htmlLink,omitempty"`
	Start                 time.Time `json:"startTime"`
	End                   time.Time `json:"endTime"`
	AllDay                bool      `json:"allDay"`
	ImpactRating          *int      `json:"impactRating"`
	PreMeetingInsight     *string   `json:"preMeetingInsight"`
	PostMeetingReflection *string   `json:"postMeetingReflection"`
}
