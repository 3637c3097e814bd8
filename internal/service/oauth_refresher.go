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

package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OAuthRefresher exchanges refresh tokens at the configured OAuth2 token endpoint.
type OAuthRefresher struct {
	config *oauth2.Config
	client *http.Client
	logger *zap.Logger
}

func NewOAuthRefresher(cfg *oauth2.Config, logger *zap.Logger) *OAuthRefresher {
	return &OAuthRefresher{
		config: cfg,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			),
			Timeout: 15 * time.Second,
		},
		logger: logger.Named("oauth_refresher"),
	}
}

// Refresh returns a new token. The returned RefreshToken is empty unless the provider rotated it.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if tok.RefreshToken == refreshToken {
		tok.RefreshToken = ""
	}
	r.logger.Debug("Refreshed OAuth token", zap.Time("expiry", tok.Expiry))
	return tok, nil
}

// Exchange trades an authorization code for a token.
func (r *OAuthRefresher) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	return r.config.Exchange(ctx, code)
}

// AuthCodeURL builds the consent URL, asking for offline access so a refresh token is issued.
func (r *OAuthRefresher) AuthCodeURL(state string) string {
	return r.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}
