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

package calendarsync

import (
	"context"
	"errors"
	"net/http"
	"time"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/repository"
	"flowos.app/flowsync/internal/service"
	"flowos.app/flowsync/internal/tokengate"
	"flowos.app/flowsync/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	fetchWindow   = 7 * 24 * time.Hour
	revokeTimeout = 10 * time.Second
)

// Calendar is the remote provider the dispatcher reads events from.
type Calendar interface {
	ListEvents(ctx context.Context, accessToken string, from, to time.Time) ([]models.RemoteEvent, error)
	RevokeToken(ctx context.Context, token string) error
}

// Response is the JSON body of a successful action.
type Response map[string]any

// Service executes calendar-sync actions for an authenticated user.
type Service struct {
	tokens      repository.CredentialStore
	annotations repository.AnnotationStore
	gate        *tokengate.Gate
	calendar    Calendar
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(
	tokens repository.CredentialStore,
	annotations repository.AnnotationStore,
	gate *tokengate.Gate,
	calendar Calendar,
	tracer trace.Tracer,
	logger *zap.Logger,
) *Service {
	return &Service{
		tokens:      tokens,
		annotations: annotations,
		gate:        gate,
		calendar:    calendar,
		tracer:      tracer,
		logger:      logger.Named("calendar_sync"),
		now:         time.Now,
	}
}

// Dispatch runs action for userID. Failures are always *Error.
func (s *Service) Dispatch(ctx context.Context, userID string, action Action) (Response, error) {
	ctx, span := s.tracer.Start(ctx, "CalendarSync.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("calendar_sync.action", action.Name()),
		attribute.String("user.id", userID),
	)

	var (
		resp Response
		err  *Error
	)
	switch a := action.(type) {
	case FetchEvents:
		resp, err = s.fetchEvents(ctx, userID)
	case RateEvent:
		rating := a.ImpactRating
		resp, err = s.annotate(ctx, userID, a.EventID, models.AnnotationPatch{ImpactRating: &rating, Event: a.Event})
	case AddReflection:
		reflection := a.Reflection
		resp, err = s.annotate(ctx, userID, a.EventID, models.AnnotationPatch{PostMeetingReflection: &reflection, Event: a.Event})
	case SaveInsight:
		insight := a.Insight
		resp, err = s.annotate(ctx, userID, a.EventID, models.AnnotationPatch{PreMeetingInsight: &insight, Event: a.Event})
	case Disconnect:
		resp, err = s.disconnect(ctx, userID)
	case SaveTokens:
		resp, err = s.saveTokens(ctx, userID, a)
	default:
		err = validationError("Invalid action: %s", action.Name())
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Message)
		span.SetAttributes(attribute.String("calendar_sync.error_kind", err.Kind.String()))
		if err.Err != nil {
			span.RecordError(err.Err)
		}
		return nil, err
	}
	return resp, nil
}

func (s *Service) fetchEvents(ctx context.Context, userID string) (Response, *Error) {
	rec, err := s.tokens.GetToken(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load calendar token", zap.String("userID", userID), zap.Error(err))
		return nil, internalError("Failed to load calendar connection", err)
	}

	res := s.gate.EnsureUsableToken(ctx, rec)
	if !res.Usable {
		if res.Reason == tokengate.ReasonNotConnected {
			return nil, &Error{Kind: KindReauthRequired, Message: "No calendar connected", Reason: res.Reason}
		}
		return nil, &Error{Kind: KindReauthRequired, Message: "Calendar authorization expired, please reconnect", Reason: res.Reason}
	}

	now := s.now()
	remote, err := s.calendar.ListEvents(ctx, res.AccessToken, now, now.Add(fetchWindow))
	if err != nil {
		s.logger.Warn("Calendar provider request failed", zap.String("userID", userID), zap.Error(err))
		return nil, providerFailure(err)
	}

	annotations, err := s.annotations.ListAnnotations(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load annotations", zap.String("userID", userID), zap.Error(err))
		return nil, internalError("Failed to load event annotations", err)
	}

	events := MergeEvents(remote, annotations)
	s.logger.Debug("Merged calendar events",
		zap.String("userID", userID),
		zap.Int("remote", len(remote)),
		zap.Int("annotations", len(annotations)),
	)
	return Response{"success": true, "events": events}, nil
}

func providerFailure(err error) *Error {
	var perr *service.ProviderError
	if errors.As(err, &perr) {
		switch perr.StatusCode {
		case http.StatusTooManyRequests:
			return &Error{Kind: KindTransientDependency, Status: perr.StatusCode, Message: "Calendar provider rate limit reached, please try again later", Err: err}
		case http.StatusPaymentRequired:
			return &Error{Kind: KindTransientDependency, Status: perr.StatusCode, Message: "Calendar provider quota exhausted", Err: err}
		}
	}
	return &Error{Kind: KindRemoteProvider, Message: "Failed to fetch calendar events", Err: err}
}

func (s *Service) annotate(ctx context.Context, userID, eventID string, patch models.AnnotationPatch) (Response, *Error) {
	a, err := s.annotations.UpsertAnnotation(ctx, userID, eventID, patch)
	if err != nil {
		s.logger.Error("Failed to save annotation", zap.String("userID", userID), zap.String("eventID", eventID), zap.Error(err))
		return nil, internalError("Failed to save event annotation", err)
	}
	return Response{"success": true, "annotation": a}, nil
}

func (s *Service) disconnect(ctx context.Context, userID string) (Response, *Error) {
	rec, err := s.tokens.GetToken(ctx, userID)
	if err != nil {
		return nil, internalError("Failed to load calendar connection", err)
	}

	if err := s.annotations.DeleteAnnotations(ctx, userID); err != nil {
		s.logger.Error("Failed to delete annotations", zap.String("userID", userID), zap.Error(err))
		return nil, internalError("Failed to disconnect calendar", err)
	}
	if err := s.tokens.DeleteToken(ctx, userID); err != nil {
		s.logger.Error("Failed to delete calendar token", zap.String("userID", userID), zap.Error(err))
		return nil, internalError("Failed to disconnect calendar", err)
	}

	if rec != nil {
		token := rec.RefreshToken
		if token == "" {
			token = rec.AccessToken
		}
		utils.BestEffort(ctx, s.logger, "revoke_calendar_token", revokeTimeout, func(ctx context.Context) error {
			return s.calendar.RevokeToken(ctx, token)
		})
	}

	s.logger.Info("Calendar disconnected", zap.String("userID", userID))
	return Response{"success": true}, nil
}

func (s *Service) saveTokens(ctx context.Context, userID string, a SaveTokens) (Response, *Error) {
	now := s.now()
	rec := &models.TokenRecord{
		UserID:       userID,
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(a.ExpiresIn) * time.Second),
		UpdatedAt:    now,
	}

	// The provider omits the refresh token on repeat consent; keep the one we have.
	if rec.RefreshToken == "" {
		existing, err := s.tokens.GetToken(ctx, userID)
		if err != nil {
			return nil, internalError("Failed to load calendar connection", err)
		}
		if existing != nil {
			rec.RefreshToken = existing.RefreshToken
		}
	}

	if err := s.tokens.SaveToken(ctx, rec); err != nil {
		s.logger.Error("Failed to save calendar token", zap.String("userID", userID), zap.Error(err))
		return nil, internalError("Failed to save calendar tokens", err)
	}
	return Response{"success": true, "expiresAt": rec.ExpiresAt}, nil
}
