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

package handler

import (
	"net/http"
	"strings"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const deadlineLayout = "2006-01-02"

type createCommitmentRequest struct {
	Commitment      string `json:"commitment"`
	Deadline        string `json:"deadline"`
	ReminderEnabled *bool  `json:"reminderEnabled"`
}

type commitmentResponse struct {
	models.Commitment
	DaysRemaining int `json:"daysRemaining"`
}

func (h *HttpHandlers) HandleListCommitments(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleListCommitments")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	list, err := h.repo.ListCommitments(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to list commitments", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list commitments"})
		return
	}

	now := time.Now()
	out := make([]commitmentResponse, 0, len(list))
	for _, cm := range list {
		out = append(out, commitmentResponse{Commitment: cm, DaysRemaining: notify.DaysRemaining(cm.Deadline, now, h.config.Location)})
	}
	c.JSON(http.StatusOK, gin.H{"commitments": out})
}

func (h *HttpHandlers) HandleCreateCommitment(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCreateCommitment")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	var req createCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	req.Commitment = strings.TrimSpace(req.Commitment)
	if req.Commitment == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "commitment is required"})
		return
	}
	deadline, err := time.Parse(deadlineLayout, req.Deadline)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "deadline must be a YYYY-MM-DD date"})
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create commitment"})
		return
	}
	cm := &models.Commitment{
		ID:              id.String(),
		UserID:          userID,
		Commitment:      req.Commitment,
		Deadline:        deadline,
		ReminderEnabled: req.ReminderEnabled == nil || *req.ReminderEnabled,
		Status:          "active",
		CreatedAt:       time.Now(),
	}
	if err := h.repo.SaveCommitment(ctx, cm); err != nil {
		h.logger.Error("Failed to save commitment", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to save commitment"})
		return
	}
	c.JSON(http.StatusCreated, commitmentResponse{Commitment: *cm, DaysRemaining: notify.DaysRemaining(cm.Deadline, time.Now(), h.config.Location)})
}

// HandleCommitmentReminders previews today's reminders without consuming the
// daily reminder checkpoint.
func (h *HttpHandlers) HandleCommitmentReminders(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCommitmentReminders")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	list, err := h.repo.ListCommitments(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to list commitments", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list commitments"})
		return
	}
	reminders := notify.DueReminders(list, time.Now(), h.config.Location)
	if reminders == nil {
		reminders = []notify.Reminder{}
	}
	c.JSON(http.StatusOK, gin.H{"reminders": reminders})
}
