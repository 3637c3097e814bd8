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
	"context"
	"errors"
	"net/http"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleListNotifications returns the log most recent first.
func (h *HttpHandlers) HandleListNotifications(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleListNotifications")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	records, unread, err := h.scheduler.Notifications(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to load notifications", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": records, "unread": unread})
}

func (h *HttpHandlers) HandleMarkNotificationRead(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleMarkNotificationRead")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	err := h.scheduler.MarkRead(ctx, userID, c.Param("id"))
	switch {
	case errors.Is(err, notify.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
	case err != nil:
		h.logger.Error("Failed to mark notification read", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// HandleMarkAllNotificationsRead marks every notification read, or only those
// of the category named by the type query parameter.
func (h *HttpHandlers) HandleMarkAllNotificationsRead(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleMarkAllNotificationsRead")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	var category models.Category
	if t := c.Query("type"); t != "" {
		parsed, err := models.ParseCategory(t)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		category = parsed
	}

	n, err := h.scheduler.MarkAllRead(ctx, userID, category)
	if err != nil {
		h.logger.Error("Failed to mark notifications read", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

// HandleRecordContent stores a content notification. Without a title the
// next item of the built-in content rotation is used.
func (h *HttpHandlers) HandleRecordContent(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleRecordContent")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	var req notify.Content
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}
	}

	var (
		rec *models.NotificationRecord
		err error
	)
	if req.Title == "" {
		rec, err = h.scheduler.MaybeEmit(ctx, userID, models.CategoryContent, time.Now())
	} else {
		rec, err = h.scheduler.Record(ctx, userID, models.CategoryContent, req)
	}
	if err != nil {
		h.logger.Error("Failed to record content notification", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to record notification"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "notification": nil})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "notification": rec})
}

func (h *HttpHandlers) HandleGetPreferences(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleGetPreferences")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	prefs, err := h.scheduler.Preferences(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to load preferences", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// HandleUpdatePreferences applies a partial map of category flags.
func (h *HttpHandlers) HandleUpdatePreferences(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleUpdatePreferences")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	var req map[string]bool
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	update := make(models.NotificationPreferences, len(req))
	for k, v := range req {
		category, err := models.ParseCategory(k)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		update[category] = v
	}

	prefs, err := h.scheduler.UpdatePreferences(ctx, userID, update)
	if err != nil {
		h.logger.Error("Failed to save preferences", zap.String("userID", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to save preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// HandleStartSession starts the user's emission timers. They outlive the
// request and run until stopped or until the process shuts down.
func (h *HttpHandlers) HandleStartSession(c *gin.Context) {
	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	s := h.scheduler.StartSession(context.WithoutCancel(c.Request.Context()), userID)
	c.JSON(http.StatusAccepted, gin.H{"success": true, "startedAt": s.StartedAt})
}

func (h *HttpHandlers) HandleStopSession(c *gin.Context) {
	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}
	if !h.scheduler.StopSession(userID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No active session"})
		return
	}
	c.Status(http.StatusNoContent)
}
