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

	"github.com/gin-gonic/gin"
)

func (h *HttpHandlers) RegisterRoutes(router *gin.Engine) {
	router.Use(h.LoggerMiddleware())
	router.Use(h.CORSMiddleware())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/calendar-sync", h.AuthMiddleware(), h.HandleCalendarSync)

		calendar := v1.Group("/calendar")
		{
			calendar.GET("/login", h.HandleCalendarLogin)
			calendar.GET("/callback", h.HandleCalendarCallback)
		}

		notifications := v1.Group("/notifications")
		notifications.Use(h.AuthMiddleware())
		{
			notifications.GET("", h.HandleListNotifications)
			notifications.POST("/:id/read", h.HandleMarkNotificationRead)
			notifications.POST("/read-all", h.HandleMarkAllNotificationsRead)
			notifications.POST("/content", h.HandleRecordContent)
			notifications.GET("/preferences", h.HandleGetPreferences)
			notifications.PUT("/preferences", h.HandleUpdatePreferences)
			notifications.POST("/session", h.HandleStartSession)
			notifications.DELETE("/session", h.HandleStopSession)
		}

		commitments := v1.Group("/commitments")
		commitments.Use(h.AuthMiddleware())
		{
			commitments.GET("", h.HandleListCommitments)
			commitments.POST("", h.HandleCreateCommitment)
			commitments.GET("/reminders", h.HandleCommitmentReminders)
		}
	}

	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
}
