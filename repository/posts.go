package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cloudapp/socialforum/models"
	"github.com/cloudapp/socialforum/services"
)

// Posts is the gorm-backed implementation of services.PostStore.
type Posts struct {
	db *gorm.DB
}

// NewPosts creates a post repository.
func NewPosts(db *gorm.DB) *Posts {
	return &Posts{db: db}
}

// FindByID loads one post or services.ErrNotFound.
func (r *Posts) FindByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("find post %d: %w", id, err)
	}
	return &post, nil
}

// FindByUserID loads all posts owned by one user.
func (r *Posts) FindByUserID(ctx context.Context, userID uint) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("find posts of user %d: %w", userID, err)
	}
	return posts, nil
}

// FindAll loads every live post row.
func (r *Posts) FindAll(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	return posts, nil
}

// DeleteByID removes one post row. Deleting an already-gone row reports
// services.ErrNotFound so concurrent repeat deletes stay harmless.
func (r *Posts) DeleteByID(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete post %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}
