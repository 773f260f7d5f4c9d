package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cloudapp/socialforum/models"
	"github.com/cloudapp/socialforum/services"
)

// Users is the gorm-backed implementation of services.UserStore and of the
// middleware's user lookup.
type Users struct {
	db *gorm.DB
}

// NewUsers creates a user repository.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// FindByID loads one user or services.ErrNotFound.
func (r *Users) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return &user, nil
}

// FindByUsername loads one user by username or services.ErrNotFound. Used by
// the authentication gate to re-validate token subjects.
func (r *Users) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	return &user, nil
}

// DeleteByID hard-deletes one user row; the database cascade removes posts,
// comments and likes.
func (r *Users) DeleteByID(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Unscoped().Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}
