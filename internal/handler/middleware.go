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
	"errors"
	"net/http"
	"time"

	"flowos.app/flowsync/internal/service"
	"flowos.app/flowsync/internal/utils"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "userID"
)

// AuthMiddleware verifies the bearer token with the auth provider and stores
// the user ID in the context.
func (h *HttpHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := h.Tracer.Start(c.Request.Context(), "AuthMiddleware")
		defer span.End()

		token, err := h.AuthUtils.GetBearerToken(c.Request)
		if err != nil {
			h.logger.Warn("Missing or invalid authorization header", zap.Error(err))
			span.RecordError(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		userID, err := h.auth.Authenticate(ctx, token)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, service.ErrInvalidCredentials) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			h.logger.Error("Failed to verify access token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify credentials"})
			return
		}

		span.SetAttributes(attribute.String("user.id", userID))
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

func (h *HttpHandlers) LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		h.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func (h *HttpHandlers) CORSMiddleware() gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, o := range utils.SplitAndTrim(h.config.CORSAllowedOrigins, ",") {
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization,Content-Type,apikey,x-client-info")
				c.Header("Access-Control-Max-Age", "600")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// GetUserIDFromContext returns the ID stored by AuthMiddleware.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	v, exists := c.Get(userIDContextKey)
	if !exists {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}

func (h *HttpHandlers) mustUserID(c *gin.Context) (string, bool) {
	userID, ok := GetUserIDFromContext(c)
	if !ok {
		// This should not happen if middleware is configured correctly
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user from context"})
	}
	return userID, ok
}
