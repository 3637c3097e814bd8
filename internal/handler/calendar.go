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
	"io"
	"net/http"
	"time"

	"flowos.app/flowsync/internal/calendarsync"
	"flowos.app/flowsync/internal/config"
	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/service"
	"flowos.app/flowsync/internal/utils"
	"flowos.app/flowsync/internal/view"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const maxActionBodyBytes = 1 << 20

// HandleCalendarSync dispatches one calendar-sync action.
func (h *HttpHandlers) HandleCalendarSync(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCalendarSync")
	defer span.End()

	userID, ok := h.mustUserID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxActionBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	action, err := calendarsync.ParseAction(body)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}
	span.SetAttributes(attribute.String("calendar_sync.action", action.Name()))

	resp, err := h.calendarSync.Dispatch(ctx, userID, action)
	if err != nil {
		span.SetStatus(codes.Error, "calendar sync failed")
		h.writeSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HttpHandlers) writeSyncError(c *gin.Context, err error) {
	var serr *calendarsync.Error
	if !errors.As(err, &serr) {
		h.logger.Error("Unexpected calendar sync error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	body := gin.H{"error": serr.Message}
	if serr.NeedsAuth() {
		body["needsAuth"] = true
	}
	if serr.Reason != "" {
		body["reason"] = serr.Reason
	}
	c.AbortWithStatusJSON(serr.HTTPStatus(), body)
}

// HandleCalendarLogin starts the Google OAuth flow for the user identified by
// the token query parameter.
func (h *HttpHandlers) HandleCalendarLogin(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCalendarLogin")
	defer span.End()

	token, err := h.AuthUtils.GetTokenFromQuery(c.Request)
	if err != nil {
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

	state, err := h.AuthUtils.GenerateOAuthState()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate OAuth state"})
		return
	}
	sealedUser, err := utils.Encrypt(userID, h.cookieKey)
	if err != nil {
		h.logger.Error("Failed to seal user cookie", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start authorization"})
		return
	}

	h.AuthUtils.SetCookie(c.Writer, c.Request, config.OauthStateCookieName, state, config.OauthCookieMaxAge)
	h.AuthUtils.SetCookie(c.Writer, c.Request, config.OauthUserCookieName, sealedUser, config.OauthCookieMaxAge)

	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// HandleCalendarCallback completes the Google OAuth flow and stores the token pair.
func (h *HttpHandlers) HandleCalendarCallback(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCalendarCallback")
	defer span.End()

	if errMsg := c.Query("error"); errMsg != "" {
		h.logger.Warn("Calendar OAuth callback returned an error", zap.String("error", errMsg))
		h.renderConnected(c, http.StatusBadRequest, "Authorization was not granted: "+errMsg)
		return
	}

	stateCookie, err := c.Cookie(config.OauthStateCookieName)
	if err != nil || stateCookie == "" || c.Query("state") != stateCookie {
		h.logger.Warn("Invalid OAuth state or cookie not found", zap.Error(err))
		h.renderConnected(c, http.StatusBadRequest, "The authorization request expired, please try again.")
		return
	}

	sealedUser, err := c.Cookie(config.OauthUserCookieName)
	if err != nil {
		h.renderConnected(c, http.StatusBadRequest, "The authorization request expired, please try again.")
		return
	}
	userID, err := utils.Decrypt(sealedUser, h.cookieKey)
	if err != nil || userID == "" {
		h.logger.Warn("Failed to open user cookie", zap.Error(err))
		h.renderConnected(c, http.StatusBadRequest, "The authorization request expired, please try again.")
		return
	}

	tok, err := h.oauth.Exchange(ctx, c.Query("code"))
	if err != nil {
		h.logger.Error("Failed to exchange calendar authorization code", zap.Error(err))
		span.SetStatus(codes.Error, "token exchange failed")
		h.renderConnected(c, http.StatusBadGateway, "Google did not accept the authorization, please try again.")
		return
	}

	now := time.Now()
	rec := &models.TokenRecord{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		UpdatedAt:    now,
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = now.Add(time.Hour)
	}
	if rec.RefreshToken == "" {
		if existing, err := h.repo.GetToken(ctx, userID); err == nil && existing != nil {
			rec.RefreshToken = existing.RefreshToken
		}
	}
	if err := h.repo.SaveToken(ctx, rec); err != nil {
		h.logger.Error("Failed to store calendar token", zap.String("userID", userID), zap.Error(err))
		h.renderConnected(c, http.StatusInternalServerError, "Failed to save the calendar connection.")
		return
	}

	h.AuthUtils.ClearOAuthCookies(c.Writer, c.Request)
	span.SetAttributes(attribute.String("user.id", userID))
	h.logger.Info("Calendar connected", zap.String("userID", userID), zap.Bool("refreshToken", rec.RefreshToken != ""))
	h.renderConnected(c, http.StatusOK, "")
}

func (h *HttpHandlers) renderConnected(c *gin.Context, status int, message string) {
	data := view.CalendarConnectedData{
		Success:   status == http.StatusOK,
		Message:   message,
		ReturnURL: h.config.AppBaseURL,
	}
	if h.views == nil {
		if data.Success {
			c.JSON(status, gin.H{"success": true})
		} else {
			c.JSON(status, gin.H{"error": message})
		}
		return
	}
	if err := h.views.Render(c.Writer, status, view.CalendarConnectedPage, data); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
