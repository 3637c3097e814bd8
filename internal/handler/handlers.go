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
	"crypto/rand"
	"encoding/hex"

	"flowos.app/flowsync/internal/calendarsync"
	"flowos.app/flowsync/internal/config"
	"flowos.app/flowsync/internal/notify"
	"flowos.app/flowsync/internal/repository"
	"flowos.app/flowsync/internal/utils"
	"flowos.app/flowsync/internal/view"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Authenticator resolves a bearer access token to a user ID.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// OAuthFlow is the calendar provider's authorization code flow.
type OAuthFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// HttpHandlers holds application-wide state and dependencies.
type HttpHandlers struct {
	logger       *zap.Logger
	config       *config.Config
	auth         Authenticator
	calendarSync *calendarsync.Service
	repo         repository.Repository
	scheduler    *notify.Scheduler
	oauth        OAuthFlow
	views        *view.HTMLTemplateManager
	cookieKey    string
	Tracer       trace.Tracer
	AuthUtils    *utils.AuthUtils
}

// NewHttpHandlers creates a new HttpHandlers instance.
func NewHttpHandlers(
	logger *zap.Logger,
	cfg *config.Config,
	auth Authenticator,
	calendarSync *calendarsync.Service,
	repo repository.Repository,
	scheduler *notify.Scheduler,
	oauth OAuthFlow,
	views *view.HTMLTemplateManager,
	tracer trace.Tracer,
) *HttpHandlers {
	h := &HttpHandlers{
		logger:       logger.Named("http_handler"),
		config:       cfg,
		auth:         auth,
		calendarSync: calendarSync,
		repo:         repo,
		scheduler:    scheduler,
		oauth:        oauth,
		views:        views,
		cookieKey:    cfg.SecretKey,
		Tracer:       tracer,
		AuthUtils:    utils.NewAuthUtils(),
	}
	// The user cookie only lives for one OAuth round trip, so a per-process
	// key is enough when no SECRET_KEY is configured.
	if h.cookieKey == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			h.logger.Fatal("Failed to generate cookie key", zap.Error(err))
		}
		h.cookieKey = hex.EncodeToString(b)
	}
	return h
}
