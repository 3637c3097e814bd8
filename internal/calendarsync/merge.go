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

// Package calendarsync serves the calendar-sync action endpoint: it gates the
// stored calendar token, fetches remote events and merges them with the
// user's local annotations.
package calendarsync

import "flowos.app/flowsync/internal/models"

// MergeEvents combines each remote event with the annotation sharing its ID.
// The result has the length and order of remote. Annotations without a
// remote event are left out.
func MergeEvents(remote []models.RemoteEvent, annotations []models.CalendarEventAnnotation) []models.MergedEvent {
	byID := make(map[string]*models.CalendarEventAnnotation, len(annotations))
	for i := range annotations {
		byID[annotations[i].ExternalEventID] = &annotations[i]
	}

	merged := make([]models.MergedEvent, 0, len(remote))
	for _, ev := range remote {
		m := models.MergedEvent{
			ID:          ev.ID,
			Title:       ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			HTMLLink:    ev.HTMLLink,
			Start:       ev.Time.Start,
			End:         ev.Time.End,
			AllDay:      ev.Time.AllDay,
		}
		if a, ok := byID[ev.ID]; ok {
			m.ImpactRating = a.ImpactRating
			m.PreMeetingInsight = a.PreMeetingInsight
			m.PostMeetingReflection = a.PostMeetingReflection
		}
		merged = append(merged, m)
	}
	return merged
}
