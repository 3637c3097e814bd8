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

// Package notify keeps each user's notification log, preferences and
// scheduler checkpoints, and decides when a daily notification, podcast
// alert or commitment reminder should be emitted.
package notify

import "flowos.app/flowsync/internal/models"

// MaxLogEntries caps the notification log. The oldest records are evicted first.
const MaxLogEntries = 50

// Log is a user's notification log, oldest record first.
type Log struct {
	Records []models.NotificationRecord `json:"records"`
}

// Append adds rec and evicts from the front until the cap holds.
func (l *Log) Append(rec models.NotificationRecord) {
	l.Records = append(l.Records, rec)
	if over := len(l.Records) - MaxLogEntries; over > 0 {
		l.Records = append([]models.NotificationRecord(nil), l.Records[over:]...)
	}
}

// MarkRead flips the record with id to read. It reports whether the record exists.
func (l *Log) MarkRead(id string) bool {
	for i := range l.Records {
		if l.Records[i].ID == id {
			l.Records[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead marks every record of category as read, or every record when
// category is empty, and returns how many changed.
func (l *Log) MarkAllRead(category models.Category) int {
	n := 0
	for i := range l.Records {
		r := &l.Records[i]
		if r.Read || (category != "" && r.Type != category) {
			continue
		}
		r.Read = true
		n++
	}
	return n
}

// Recent returns the records most recent first.
func (l *Log) Recent() []models.NotificationRecord {
	out := make([]models.NotificationRecord, len(l.Records))
	for i, r := range l.Records {
		out[len(l.Records)-1-i] = r
	}
	return out
}

// Unread counts unread records.
func (l *Log) Unread() int {
	n := 0
	for _, r := range l.Records {
		if !r.Read {
			n++
		}
	}
	return n
}
