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

	"flowos.app/flowsync/internal/models"
)

// CredentialStore persists one calendar TokenRecord per user.
type CredentialStore interface {
	// SaveToken creates or replaces the record for rec.UserID.
	SaveToken(ctx context.Context, rec *models.TokenRecord) error
	// GetToken returns nil, nil when the user has no record.
	GetToken(ctx context.Context, userID string) (*models.TokenRecord, error)
	DeleteToken(ctx context.Context, userID string) error
}

// AnnotationStore persists CalendarEventAnnotations keyed by (userID, externalEventID).
type AnnotationStore interface {
	// UpsertAnnotation creates the annotation if missing and applies patch to it.
	UpsertAnnotation(ctx context.Context, userID, externalEventID string, patch models.AnnotationPatch) (*models.CalendarEventAnnotation, error)
	ListAnnotations(ctx context.Context, userID string) ([]models.CalendarEventAnnotation, error)
	DeleteAnnotations(ctx context.Context, userID string) error
}

// CommitmentStore persists a user's commitments.
type CommitmentStore interface {
	SaveCommitment(ctx context.Context, c *models.Commitment) error
	ListCommitments(ctx context.Context, userID string) ([]models.Commitment, error)
}

// Repository is the full storage surface used by the service.
type Repository interface {
	CredentialStore
	AnnotationStore
	CommitmentStore
	Close() error
}
