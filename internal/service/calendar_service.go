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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flowos.app/flowsync/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	primaryCalendarID = "primary"
	googleRevokeURL   = "https://oauth2.googleapis.com/revoke"
)

// ProviderError is a non-success answer from the calendar provider.
type ProviderError struct {
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar provider returned status %d: %v", e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CalendarService is responsible for interacting with the Google Calendar API.
type CalendarService struct {
	transport http.RoundTripper
	timeout   time.Duration
	endpoint  string
	revokeURL string
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewCalendarService creates a new CalendarService. An empty endpoint uses the
// public Google Calendar API.
func NewCalendarService(endpoint string, tracer trace.Tracer, logger *zap.Logger) *CalendarService {
	return &CalendarService{
		transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		),
		timeout:   15 * time.Second,
		endpoint:  endpoint,
		revokeURL: googleRevokeURL,
		tracer:    tracer,
		logger:    logger.Named("calendar_service"),
	}
}

// ListEvents fetches the primary calendar's events between from and to,
// expanded to single instances and ordered by start time.
func (s *CalendarService) ListEvents(ctx context.Context, accessToken string, from, to time.Time) ([]models.RemoteEvent, error) {
	ctx, span := s.tracer.Start(ctx, "CalendarService.ListEvents")
	defer span.End()

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   s.transport,
		},
		Timeout: s.timeout,
	}
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}

	var events []models.RemoteEvent
	err = svc.Events.List(primaryCalendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				if item.Status == "cancelled" {
					continue
				}
				ev, err := NormalizeEvent(item)
				if err != nil {
					s.logger.Warn("Skipping calendar event with unreadable time", zap.String("eventID", item.Id), zap.Error(err))
					continue
				}
				events = append(events, ev)
			}
			return nil
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "events.list failed")
		s.logger.Error("Calendar events.list failed", zap.Error(err))
		return nil, classifyProviderError(err)
	}

	span.SetAttributes(attribute.Int("calendar.event_count", len(events)))
	s.logger.Debug("Fetched calendar events", zap.Int("count", len(events)))
	return events, nil
}

// RevokeToken asks Google to revoke token. Revoking an already invalid token is not an error.
func (s *CalendarService) RevokeToken(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "CalendarService.RevokeToken")
	defer span.End()

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := (&http.Client{Transport: s.transport}).Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("revoke returned status %d: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		return err
	}
	return nil
}

func classifyProviderError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &ProviderError{StatusCode: gerr.Code, Err: err}
	}
	return &ProviderError{StatusCode: http.StatusBadGateway, Err: err}
}
