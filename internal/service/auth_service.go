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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned when the auth provider rejects the access token.
var ErrInvalidCredentials = errors.New("invalid credentials")

type supabaseUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SupabaseAuthService resolves a Supabase access token to its user ID.
type SupabaseAuthService struct {
	baseURL string
	anonKey string
	client  *http.Client
	tracer  trace.Tracer
	logger  *zap.Logger
}

func NewSupabaseAuthService(baseURL, anonKey string, tracer trace.Tracer, logger *zap.Logger) *SupabaseAuthService {
	return &SupabaseAuthService{
		baseURL: baseURL,
		anonKey: anonKey,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			),
			Timeout: 15 * time.Second,
		},
		tracer: tracer,
		logger: logger.Named("supabase_auth"),
	}
}

// Authenticate returns the user ID that owns accessToken.
func (s *SupabaseAuthService) Authenticate(ctx context.Context, accessToken string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "SupabaseAuthService.Authenticate")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if s.anonKey != "" {
		req.Header.Set("apikey", s.anonKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read auth response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		s.logger.Error("Auth provider returned non-OK status", zap.Int("statusCode", resp.StatusCode), zap.ByteString("responseBody", body))
		return "", fmt.Errorf("auth provider returned status %d", resp.StatusCode)
	}

	var user supabaseUserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("failed to unmarshal auth response: %w", err)
	}
	if user.ID == "" {
		return "", ErrInvalidCredentials
	}
	return user.ID, nil
}
