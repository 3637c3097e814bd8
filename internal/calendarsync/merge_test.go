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
	"testing"
	"time"

	"flowos.app/flowsync/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func remote(id string) models.RemoteEvent {
	start := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	return models.RemoteEvent{ID: id, Title: "Event " + id, Time: models.TimeRange{Start: start, End: start.Add(time.Hour)}}
}

func TestMergeEventsPreservesOrderAndLength(t *testing.T) {
	events := []models.RemoteEvent{remote("c"), remote("a"), remote("b")}
	annotations := []models.CalendarEventAnnotation{
		{ExternalEventID: "a", ImpactRating: intPtr(2)},
		{ExternalEventID: "b", PreMeetingInsight: strPtr("Ask about the roadmap"), PostMeetingReflection: strPtr("Went well")},
		{ExternalEventID: "orphan", ImpactRating: intPtr(-2)},
	}

	merged := MergeEvents(events, annotations)
	if len(merged) != len(events) {
		t.Fatalf("len = %d, want %d", len(merged), len(events))
	}
	for i, ev := range events {
		if merged[i].ID != ev.ID {
			t.Errorf("merged[%d].ID = %q, want %q", i, merged[i].ID, ev.ID)
		}
	}

	if merged[0].ImpactRating != nil || merged[0].PreMeetingInsight != nil || merged[0].PostMeetingReflection != nil {
		t.Errorf("unannotated event carries local fields: %+v", merged[0])
	}
	if merged[1].ImpactRating == nil || *merged[1].ImpactRating != 2 {
		t.Errorf("event a rating = %v, want 2", merged[1].ImpactRating)
	}
	if merged[2].PreMeetingInsight == nil || *merged[2].PreMeetingInsight != "Ask about the roadmap" {
		t.Errorf("event b insight = %v", merged[2].PreMeetingInsight)
	}
	if merged[2].PostMeetingReflection == nil || *merged[2].PostMeetingReflection != "Went well" {
		t.Errorf("event b reflection = %v", merged[2].PostMeetingReflection)
	}
	for _, m := range merged {
		if m.ID == "orphan" {
			t.Error("orphaned annotation surfaced as an event")
		}
	}
}

func TestMergeEventsEmpty(t *testing.T) {
	merged := MergeEvents(nil, []models.CalendarEventAnnotation{{ExternalEventID: "x"}})
	if merged == nil || len(merged) != 0 {
		t.Errorf("MergeEvents(nil) = %#v, want empty non-nil slice", merged)
	}
}

func TestMergeEventsCopiesTimeRange(t *testing.T) {
	ev := remote("d")
	ev.Time.AllDay = true
	merged := MergeEvents([]models.RemoteEvent{ev}, nil)
	if !merged[0].AllDay || !merged[0].Start.Equal(ev.Time.Start) || !merged[0].End.Equal(ev.Time.End) {
		t.Errorf("time range not carried over: %+v", merged[0])
	}
}
