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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"flowos.app/flowsync/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PushService delivers platform notifications through the push gateway.
type PushService struct {
	apiURL     string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewPushService creates a new PushService.
func NewPushService(apiURL string, tracer trace.Tracer, logger *zap.Logger) *PushService {
	return &PushService{
		apiURL: apiURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			),
			Timeout: 10 * time.Second,
		},
		tracer: tracer,
		logger: logger.Named("push_service"),
	}
}

// Push sends msg to the gateway and returns the gateway's status code.
func (s *PushService) Push(ctx context.Context, userID string, msg models.PushMessage) (int, error) {
	ctx, span := s.tracer.Start(ctx, "PushService.Push")
	defer span.End()

	if msg.ID == "" {
		err := fmt.Errorf("push message ID is empty")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Message ID missing")
		return 0, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to marshal push message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/notifications/%s", s.apiURL, url.PathEscape(userID), url.PathEscape(msg.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create request failed")
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	span.SetAttributes(
		attribute.String("http.url", endpoint),
		attribute.String("push.kind", msg.Kind),
	)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "HTTP request failed")
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("push gateway returned non-success status %d: %s", resp.StatusCode, string(bodyBytes))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Gateway returned non-success")
		return resp.StatusCode, err
	}

	s.logger.Debug("Pushed notification", zap.String("userID", userID), zap.String("id", msg.ID), zap.Int("statusCode", resp.StatusCode))
	return resp.StatusCode, nil
}

// Notify implements notify.Notifier.
func (s *PushService) Notify(ctx context.Context, userID string, msg models.PushMessage) error {
	status, err := s.Push(ctx, userID, msg)
	if err != nil && status == http.StatusGone {
		s.logger.Warn("User has no registered devices left", zap.String("userID", userID))
	}
	return err
}
