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
	"sort"
	"sync"
	"time"

	"flowos.app/flowsync/internal/models"
	"go.uber.org/zap"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu          sync.RWMutex
	tokens      map[string]models.TokenRecord
	annotations map[string]map[string]models.CalendarEventAnnotation
	commitments map[string]map[string]models.Commitment
	logger      *zap.Logger
	now         func() time.Time
}

// NewInMemoryRepository creates a new InMemoryRepository.
func NewInMemoryRepository(logger *zap.Logger) *InMemoryRepository {
	return &InMemoryRepository{
		tokens:      make(map[string]models.TokenRecord),
		annotations: make(map[string]map[string]models.CalendarEventAnnotation),
		commitments: make(map[string]map[string]models.Commitment),
		logger:      logger.Named("inmemory_repo"),
		now:         time.Now,
	}
}

func (r *InMemoryRepository) SaveToken(ctx context.Context, rec *models.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *rec
	stored.UpdatedAt = r.now()
	r.tokens[rec.UserID] = stored
	r.logger.Info("Saved calendar token in-memory", zap.String("userID", rec.UserID))
	return nil
}

func (r *InMemoryRepository) GetToken(ctx context.Context, userID string) (*models.TokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, exists := r.tokens[userID]
	if !exists {
		return nil, nil // Not found
	}
	return &rec, nil
}

func (r *InMemoryRepository) DeleteToken(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, userID)
	r.logger.Info("Deleted calendar token in-memory", zap.String("userID", userID))
	return nil
}

func (r *InMemoryRepository) UpsertAnnotation(ctx context.Context, userID, externalEventID string, patch models.AnnotationPatch) (*models.CalendarEventAnnotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byEvent, ok := r.annotations[userID]
	if !ok {
		byEvent = make(map[string]models.CalendarEventAnnotation)
		r.annotations[userID] = byEvent
	}
	a, exists := byEvent[externalEventID]
	if !exists {
		a = models.CalendarEventAnnotation{UserID: userID, ExternalEventID: externalEventID}
	}
	patch.Apply(&a)
	a.UpdatedAt = r.now()
	byEvent[externalEventID] = a
	return &a, nil
}

func (r *InMemoryRepository) ListAnnotations(ctx context.Context, userID string) ([]models.CalendarEventAnnotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.CalendarEventAnnotation, 0, len(r.annotations[userID]))
	for _, a := range r.annotations[userID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalEventID < out[j].ExternalEventID })
	return out, nil
}

func (r *InMemoryRepository) DeleteAnnotations(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.annotations, userID)
	r.logger.Info("Deleted calendar annotations in-memory", zap.String("userID", userID))
	return nil
}

func (r *InMemoryRepository) SaveCommitment(ctx context.Context, c *models.Commitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.commitments[c.UserID]
	if !ok {
		byID = make(map[string]models.Commitment)
		r.commitments[c.UserID] = byID
	}
	byID[c.ID] = *c
	return nil
}

func (r *InMemoryRepository) ListCommitments(ctx context.Context, userID string) ([]models.Commitment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Commitment, 0, len(r.commitments[userID]))
	for _, c := range r.commitments[userID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (r *InMemoryRepository) Close() error {
	r.logger.Info("Closing in-memory repository (no-op).")
	return nil
}
