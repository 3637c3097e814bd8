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
	"errors"
	"fmt"
	"time"

	"flowos.app/flowsync/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormRepository stores everything in SQL tables through gorm. In production
// this is the Supabase Postgres database.
type GormRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	cipher tokenCipher
}

// NewPostgresRepository connects to dsn and migrates the schema.
func NewPostgresRepository(dsn string, logger *zap.Logger, secretKey string) (*GormRepository, error) {
	return NewGormRepository(postgres.Open(dsn), logger, secretKey)
}

// NewGormRepository opens dialector and migrates the schema.
func NewGormRepository(dialector gorm.Dialector, logger *zap.Logger, secretKey string) (*GormRepository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	if err := db.AutoMigrate(&models.TokenRecord{}, &models.CalendarEventAnnotation{}, &models.Commitment{}); err != nil {
		return nil, fmt.Errorf("auto migrate failed: %w", err)
	}
	return &GormRepository{
		db:     db,
		logger: logger.Named("gorm_repo"),
		cipher: tokenCipher{key: secretKey},
	}, nil
}

func (r *GormRepository) SaveToken(ctx context.Context, rec *models.TokenRecord) error {
	stored := *rec
	stored.UpdatedAt = time.Now()
	encrypted, err := r.cipher.encrypt(&stored)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(encrypted).Error
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	r.logger.Info("Saved calendar token", zap.String("userID", rec.UserID))
	return nil
}

func (r *GormRepository) GetToken(ctx context.Context, userID string) (*models.TokenRecord, error) {
	var rec models.TokenRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return r.cipher.decrypt(&rec)
}

func (r *GormRepository) DeleteToken(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.TokenRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	r.logger.Info("Deleted calendar token", zap.String("userID", userID))
	return nil
}

func (r *GormRepository) UpsertAnnotation(ctx context.Context, userID, externalEventID string, patch models.AnnotationPatch) (*models.CalendarEventAnnotation, error) {
	row := models.CalendarEventAnnotation{
		UserID:          userID,
		ExternalEventID: externalEventID,
		UpdatedAt:       time.Now(),
	}
	patch.Apply(&row)

	columns := []string{"updated_at"}
	if patch.ImpactRating != nil {
		columns = append(columns, "impact_rating")
	}
	if patch.PreMeetingInsight != nil {
		columns = append(columns, "pre_meeting_insight")
	}
	if patch.PostMeetingReflection != nil {
		columns = append(columns, "post_meeting_reflection")
	}
	if patch.Event != nil {
		columns = append(columns, "title", "description", "start_time", "end_time")
	}

	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "external_event_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert annotation: %w", err)
	}

	var stored models.CalendarEventAnnotation
	if err := db.Where("user_id = ? AND external_event_id = ?", userID, externalEventID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to read back annotation: %w", err)
	}
	return &stored, nil
}

func (r *GormRepository) ListAnnotations(ctx context.Context, userID string) ([]models.CalendarEventAnnotation, error) {
	var out []models.CalendarEventAnnotation
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("external_event_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	return out, nil
}

func (r *GormRepository) DeleteAnnotations(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CalendarEventAnnotation{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete annotations: %w", res.Error)
	}
	r.logger.Info("Deleted calendar annotations", zap.String("userID", userID), zap.Int64("count", res.RowsAffected))
	return nil
}

func (r *GormRepository) SaveCommitment(ctx context.Context, c *models.Commitment) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(c).Error
	if err != nil {
		return fmt.Errorf("failed to save commitment: %w", err)
	}
	return nil
}

func (r *GormRepository) ListCommitments(ctx context.Context, userID string) ([]models.Commitment, error) {
	var out []models.Commitment
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("deadline asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	return out, nil
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
