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

package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"flowos.app/flowsync/internal/models"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tokenCollection      = "calendarTokens"
	annotationCollection = "calendarEvents"
	commitmentCollection = "commitments"
)

// FirestoreRepository is a Firestore implementation of the Repository.
type FirestoreRepository struct {
	client *firestore.Client
	logger *zap.Logger
	cipher tokenCipher
}

// NewFirestoreRepository creates a new FirestoreRepository.
func NewFirestoreRepository(ctx context.Context, projectID string, logger *zap.Logger, secretKey string) (*FirestoreRepository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreRepository{
		client: client,
		logger: logger.Named("firestore_repo"),
		cipher: tokenCipher{key: secretKey},
	}, nil
}

func (r *FirestoreRepository) SaveToken(ctx context.Context, rec *models.TokenRecord) error {
	stored := *rec
	stored.UpdatedAt = time.Now()
	encrypted, err := r.cipher.encrypt(&stored)
	if err != nil {
		return err
	}
	// A single Set replaces the whole document, so readers never see a partial update.
	if _, err := r.client.Collection(tokenCollection).Doc(rec.UserID).Set(ctx, encrypted); err != nil {
		return fmt.Errorf("failed to save token in firestore: %w", err)
	}
	r.logger.Info("Saved calendar token in Firestore", zap.String("userID", rec.UserID))
	return nil
}

func (r *FirestoreRepository) GetToken(ctx context.Context, userID string) (*models.TokenRecord, error) {
	doc, err := r.client.Collection(tokenCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	var rec models.TokenRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode token data: %w", err)
	}
	return r.cipher.decrypt(&rec)
}

func (r *FirestoreRepository) DeleteToken(ctx context.Context, userID string) error {
	_, err := r.client.Collection(tokenCollection).Doc(userID).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	r.logger.Info("Deleted calendar token from Firestore", zap.String("userID", userID))
	return nil
}

// annotationDocID derives the document ID from the compound key, which makes
// the (userID, externalEventID) pair unique by construction. Both parts are
// base64url encoded so neither can contain the "." separator or a "/".
func annotationDocID(userID, externalEventID string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(userID)) + "." + enc.EncodeToString([]byte(externalEventID))
}

func (r *FirestoreRepository) UpsertAnnotation(ctx context.Context, userID, externalEventID string, patch models.AnnotationPatch) (*models.CalendarEventAnnotation, error) {
	data := map[string]interface{}{
		"userId":          userID,
		"externalEventId": externalEventID,
		"updatedAt":       time.Now(),
	}
	if patch.ImpactRating != nil {
		data["impactRating"] = *patch.ImpactRating
	}
	if patch.PreMeetingInsight != nil {
		data["preMeetingInsight"] = *patch.PreMeetingInsight
	}
	if patch.PostMeetingReflection != nil {
		data["postMeetingReflection"] = *patch.PostMeetingReflection
	}
	if ev := patch.Event; ev != nil {
		data["title"] = ev.Title
		data["description"] = ev.Description
		data["startTime"] = ev.StartTime
		data["endTime"] = ev.EndTime
	}

	ref := r.client.Collection(annotationCollection).Doc(annotationDocID(userID, externalEventID))
	if _, err := ref.Set(ctx, data, firestore.MergeAll); err != nil {
		return nil, fmt.Errorf("failed to upsert annotation: %w", err)
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read back annotation: %w", err)
	}
	var a models.CalendarEventAnnotation
	if err := doc.DataTo(&a); err != nil {
		return nil, fmt.Errorf("failed to decode annotation: %w", err)
	}
	return &a, nil
}

func (r *FirestoreRepository) ListAnnotations(ctx context.Context, userID string) ([]models.CalendarEventAnnotation, error) {
	iter := r.client.Collection(annotationCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()
	var out []models.CalendarEventAnnotation
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list annotations: %w", err)
		}
		var a models.CalendarEventAnnotation
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("failed to decode annotation: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *FirestoreRepository) DeleteAnnotations(ctx context.Context, userID string) error {
	iter := r.client.Collection(annotationCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()
	bw := r.client.BulkWriter(ctx)
	var jobs []writeJob
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to query annotations for deletion: %w", err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue annotation deletion: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	deleted, err := awaitWrites(jobs)
	if err != nil {
		r.logger.Error("Failed to delete calendar annotations", zap.String("userID", userID), zap.Int("deleted", deleted), zap.Int("queued", len(jobs)), zap.Error(err))
		return fmt.Errorf("failed to delete annotations: %w", err)
	}
	r.logger.Info("Deleted calendar annotations from Firestore", zap.String("userID", userID), zap.Int("count", deleted))
	return nil
}

// writeJob is the outcome of a queued BulkWriter operation.
type writeJob interface {
	Results() (*firestore.WriteResult, error)
}

// awaitWrites blocks on every job and returns how many succeeded along with
// the first failure.
func awaitWrites(jobs []writeJob) (int, error) {
	ok := 0
	var first error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		ok++
	}
	return ok, first
}

func (r *FirestoreRepository) SaveCommitment(ctx context.Context, c *models.Commitment) error {
	if _, err := r.client.Collection(commitmentCollection).Doc(c.ID).Set(ctx, c); err != nil {
		return fmt.Errorf("failed to save commitment: %w", err)
	}
	return nil
}

func (r *FirestoreRepository) ListCommitments(ctx context.Context, userID string) ([]models.Commitment, error) {
	iter := r.client.Collection(commitmentCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()
	var out []models.Commitment
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list commitments: %w", err)
		}
		var c models.Commitment
		if err := doc.DataTo(&c); err != nil {
			return nil, fmt.Errorf("failed to decode commitment: %w", err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (r *FirestoreRepository) Close() error {
	return r.client.Close()
}
