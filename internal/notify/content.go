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
	"time"

	"flowos.app/flowsync/internal/models"
)

// Content is the text of a notification before it is recorded.
type Content struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	ActionURL string `json:"actionUrl,omitempty"`
}

// ContentProvider picks the content for a category on a given day.
type ContentProvider interface {
	Pick(category models.Category, day time.Time) (Content, bool)
}

// StaticContent rotates through a fixed table, one entry per day of the year.
type StaticContent map[models.Category][]Content

func (s StaticContent) Pick(category models.Category, day time.Time) (Content, bool) {
	items := s[category]
	if len(items) == 0 {
		return Content{}, false
	}
	return items[day.YearDay()%len(items)], true
}

// DefaultContent is the built-in rotation.
func DefaultContent() StaticContent {
	return StaticContent{
		models.CategoryAffirmation: {
			{Title: "Daily Affirmation", Body: "I lead with clarity and calm, even when the day gets loud."},
			{Title: "Daily Affirmation", Body: "My attention is my most valuable resource, and I choose where it goes."},
			{Title: "Daily Affirmation", Body: "I make space for the people I lead to do their best work."},
			{Title: "Daily Affirmation", Body: "Progress over perfection. One meaningful step is enough today."},
		},
		models.CategoryInsight: {
			{Title: "Leadership Insight", Body: "Your highest-impact meetings this week are worth ten minutes of preparation.", ActionURL: "/calendar"},
			{Title: "Leadership Insight", Body: "Notice which meetings drain you. Patterns in your ratings point to what to delegate.", ActionURL: "/calendar"},
			{Title: "Leadership Insight", Body: "Protected focus time is a decision, not a leftover.", ActionURL: "/calendar"},
		},
		models.CategoryAdvice: {
			{Title: "Coaching Tip", Body: "End your next meeting by naming one owner and one date for each decision."},
			{Title: "Coaching Tip", Body: "Before a difficult conversation, write down the outcome you want in one sentence."},
			{Title: "Coaching Tip", Body: "Ask one more question than feels natural before offering your view."},
		},
		models.CategoryContent: {
			{Title: "New for you", Body: "A short read on building trust in hybrid teams.", ActionURL: "/library"},
			{Title: "New for you", Body: "A five minute exercise for resetting between back-to-back meetings.", ActionURL: "/library"},
		},
	}
}
