// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the in-app notification store and
// contact lookups used by the notification transports.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// CreateNotification stores an in-app notification for userID.
func CreateNotification(ctx context.Context, db *gorm.DB, userID, kind, title, body string) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetContact returns delivery addresses for userID, or ErrNotFound.
func GetContact(ctx context.Context, db *gorm.DB, userID string) (*domain.UserContact, error) {
	var c domain.UserContact
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
