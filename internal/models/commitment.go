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

// Commitment is a deadline-bound goal the user asked to be reminded about.
type Commitment struct {
	ID              string    `gorm:"primaryKey;size:64" firestore:"id" json:"id"`
	UserID          string    `gorm:"index;size:64;not null" firestore:"userId" json:"-"`
	Commitment      string    `gorm:"not null" firestore:"commitment" json:"commitment"`
	Deadline        time.Time `gorm:"not null" firestore:"deadline" json:"deadline"`
	ReminderEnabled bool      `firestore:"reminderEnabled" json:"reminderEnabled"`
	Status          string    `gorm:"size:32;default:active" firestore:"status" json:"status"`
	CreatedAt       time.Time `firestore:"createdAt" json:"createdAt"`
}

func (Commitment) TableName() string { return "commitments" }
