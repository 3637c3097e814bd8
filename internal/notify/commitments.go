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
	"fmt"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/utils"
	"go.uber.org/zap"
)

const commitmentStatusActive = "active"

// Reminder is one commitment reminder ready to be shown.
type Reminder struct {
	CommitmentID  string `json:"commitmentId"`
	Commitment    string `json:"commitment"`
	DaysRemaining int    `json:"daysRemaining"`
	Title         string `json:"title"`
	Body          string `json:"body"`
}

// DaysRemaining is the number of calendar days from today in loc to the
// deadline's date. Deadlines are dates, so their own year, month and day are
// used as stored. A deadline of today is 0.
func DaysRemaining(deadline, now time.Time, loc *time.Location) int {
	n := now.In(loc)
	dDay := time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC)
	nDay := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(dDay.Sub(nDay).Hours() / 24)
}

// DueReminders returns a reminder for every active, reminder-enabled
// commitment whose deadline is today or later.
func DueReminders(commitments []models.Commitment, now time.Time, loc *time.Location) []Reminder {
	var out []Reminder
	for _, c := range commitments {
		if !c.ReminderEnabled {
			continue
		}
		if c.Status != "" && c.Status != commitmentStatusActive {
			continue
		}
		days := DaysRemaining(c.Deadline, now, loc)
		if days < 0 {
			continue
		}
		out = append(out, Reminder{
			CommitmentID:  c.ID,
			Commitment:    c.Commitment,
			DaysRemaining: days,
			Title:         reminderTitle(days),
			Body:          c.Commitment,
		})
	}
	return out
}

func reminderTitle(days int) string {
	switch {
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due tomorrow"
	case days <= 7:
		return fmt.Sprintf("%d days left", days)
	default:
		return "Commitment reminder"
	}
}

// CheckCommitments fires the day's commitment reminders once. The "reminded
// today" checkpoint is shared by all of the user's commitments and is only
// recorded when at least one reminder fired.
func (sc *Scheduler) CheckCommitments(ctx context.Context, userID string, now time.Time) ([]Reminder, error) {
	if sc.commitments == nil {
		return nil, nil
	}

	unlock := sc.lockUser(userID)
	defer unlock()

	l, st, err := sc.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := dayOf(now, sc.loc)
	if st.CommitmentsRemindedOn == today {
		return nil, nil
	}

	commitments, err := sc.commitments.ListCommitments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	reminders := DueReminders(commitments, now, sc.loc)
	if len(reminders) == 0 {
		return nil, nil
	}

	st.CommitmentsRemindedOn = today
	if err := sc.store.Save(ctx, userID, l, st); err != nil {
		return nil, err
	}

	if sc.notifier != nil {
		for _, r := range reminders {
			msg := models.PushMessage{
				ID:    "commitment-" + r.CommitmentID + "-" + today,
				Kind:  "commitment",
				Title: r.Title,
				Body:  r.Body,
				Time:  now,
			}
			utils.BestEffort(ctx, sc.logger, "push_commitment_reminder", pushTimeout, func(ctx context.Context) error {
				return sc.notifier.Notify(ctx, userID, msg)
			})
		}
	}
	sc.logger.Info("Sent commitment reminders", zap.String("userID", userID), zap.Int("count", len(reminders)))
	return reminders, nil
}
