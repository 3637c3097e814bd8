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

// Package tokengate decides whether a stored calendar token can be used as-is,
// must be refreshed first, or requires the user to re-authorize.
package tokengate

import (
	"context"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Reason explains why a token cannot be used.
type Reason string

const (
	ReasonNotConnected                Reason = "not_connected"
	ReasonExpiredNoRefresh            Reason = "expired_no_refresh"
	ReasonExpiredRefreshUnimplemented Reason = "expired_refresh_unimplemented"
	ReasonRefreshFailed               Reason = "refresh_failed"
)

// Result is either Usable with an access token, or NeedsReauth with a Reason.
type Result struct {
	Usable      bool
	AccessToken string
	Reason      Reason
	Refreshed   bool
}

func usable(accessToken string, refreshed bool) Result {
	return Result{Usable: true, AccessToken: accessToken, Refreshed: refreshed}
}

func needsReauth(reason Reason) Result {
	return Result{Reason: reason}
}

// Refresher exchanges a refresh token for a new access token at the provider.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Gate validates token records and refreshes them when a Refresher is wired.
type Gate struct {
	store     repository.CredentialStore
	refresher Refresher
	logger    *zap.Logger
	now       func() time.Time
}

// NewGate creates a Gate. A nil refresher leaves expired tokens in the
// ReasonExpiredRefreshUnimplemented state.
func NewGate(store repository.CredentialStore, refresher Refresher, logger *zap.Logger) *Gate {
	return &Gate{
		store:     store,
		refresher: refresher,
		logger:    logger.Named("token_gate"),
		now:       time.Now,
	}
}

// EnsureUsableToken classifies rec. A successful refresh is persisted with a
// single upsert before the new access token is returned.
func (g *Gate) EnsureUsableToken(ctx context.Context, rec *models.TokenRecord) Result {
	if rec == nil {
		return needsReauth(ReasonNotConnected)
	}
	now := g.now()
	if !rec.Expired(now) {
		return usable(rec.AccessToken, false)
	}
	if rec.RefreshToken == "" {
		g.logger.Info("Calendar token expired without refresh token", zap.String("userID", rec.UserID))
		return needsReauth(ReasonExpiredNoRefresh)
	}
	if g.refresher == nil {
		g.logger.Warn("Calendar token expired and no refresher is configured", zap.String("userID", rec.UserID))
		return needsReauth(ReasonExpiredRefreshUnimplemented)
	}

	tok, err := g.refresher.Refresh(ctx, rec.RefreshToken)
	if err != nil || tok == nil || tok.AccessToken == "" {
		g.logger.Error("Failed to refresh calendar token", zap.String("userID", rec.UserID), zap.Error(err))
		return needsReauth(ReasonRefreshFailed)
	}

	updated := *rec
	updated.AccessToken = tok.AccessToken
	updated.ExpiresAt = tok.Expiry
	if tok.Expiry.IsZero() {
		updated.ExpiresAt = now.Add(time.Hour)
	}
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	if err := g.store.SaveToken(ctx, &updated); err != nil {
		g.logger.Error("Failed to persist refreshed calendar token", zap.String("userID", rec.UserID), zap.Error(err))
		return needsReauth(ReasonRefreshFailed)
	}
	g.logger.Info("Refreshed calendar token", zap.String("userID", rec.UserID), zap.Time("expiresAt", updated.ExpiresAt))
	return usable(updated.AccessToken, true)
}
