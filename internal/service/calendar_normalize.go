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

package service

import (
	"fmt"
	"time"

	"flowos.app/flowsync/internal/models"
	"google.golang.org/api/calendar/v3"
)

const dateLayout = "2006-01-02"

// NormalizeEvent converts a Google Calendar event into a RemoteEvent. Timed
// events carry dateTime, all-day events carry date with an exclusive end day.
func NormalizeEvent(item *calendar.Event) (models.RemoteEvent, error) {
	if item == nil {
		return models.RemoteEvent{}, fmt.Errorf("event is nil")
	}
	tr, err := normalizeTimeRange(item.Start, item.End)
	if err != nil {
		return models.RemoteEvent{}, err
	}
	return models.RemoteEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		HTMLLink:    item.HtmlLink,
		Time:        tr,
	}, nil
}

func normalizeTimeRange(start, end *calendar.EventDateTime) (models.TimeRange, error) {
	if start == nil {
		return models.TimeRange{}, fmt.Errorf("event has no start")
	}
	if start.DateTime != "" {
		s, err := time.Parse(time.RFC3339, start.DateTime)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("failed to parse start dateTime %q: %w", start.DateTime, err)
		}
		e := s
		if end != nil && end.DateTime != "" {
			if e, err = time.Parse(time.RFC3339, end.DateTime); err != nil {
				return models.TimeRange{}, fmt.Errorf("failed to parse end dateTime %q: %w", end.DateTime, err)
			}
		}
		return models.TimeRange{Start: s, End: e}, nil
	}
	if start.Date != "" {
		loc := time.UTC
		if start.TimeZone != "" {
			if l, err := time.LoadLocation(start.TimeZone); err == nil {
				loc = l
			}
		}
		s, err := time.ParseInLocation(dateLayout, start.Date, loc)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("failed to parse start date %q: %w", start.Date, err)
		}
		e := s.AddDate(0, 0, 1)
		if end != nil && end.Date != "" {
			if e, err = time.ParseInLocation(dateLayout, end.Date, loc); err != nil {
				return models.TimeRange{}, fmt.Errorf("failed to parse end date %q: %w", end.Date, err)
			}
		}
		return models.TimeRange{Start: s, End: e, AllDay: true}, nil
	}
	return models.TimeRange{}, fmt.Errorf("event start has neither dateTime nor date")
}
