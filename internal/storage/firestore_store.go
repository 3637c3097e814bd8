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

package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.uber.org/zap"
)

const defaultStateCollectionName = "flowsyncState"

type kvDocument struct {
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type FirestoreKVStore struct {
	client         *firestore.Client
	logger         *zap.Logger
	collectionName string
}

func NewFirestoreKVStore(ctx context.Context, projectID string, logger *zap.Logger) (*FirestoreKVStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		logger.Error("Failed to create Firestore client", zap.String("projectID", projectID), zap.Error(err))
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	logger.Info("Successfully connected to Firestore", zap.String("projectID", projectID))
	return &FirestoreKVStore{
		client:         client,
		logger:         logger.Named("firestore_store"),
		collectionName: defaultStateCollectionName,
	}, nil
}

func (s *FirestoreKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	dsnap, err := s.client.Collection(s.collectionName).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		s.logger.Error("Failed to get value from Firestore", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("failed to get document: %w", err)
	}

	var doc kvDocument
	if err := dsnap.DataTo(&doc); err != nil {
		s.logger.Error("Failed to decode value from Firestore", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc.Value, true, nil
}

func (s *FirestoreKVStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.Collection(s.collectionName).Doc(key).Set(ctx, kvDocument{Value: value, UpdatedAt: time.Now()})
	if err != nil {
		s.logger.Error("Failed to store value in Firestore", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

func (s *FirestoreKVStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.Collection(s.collectionName).Doc(key).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *FirestoreKVStore) Close() error {
	return s.client.Close()
}
