package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloudapp/socialforum/models"
	"github.com/cloudapp/socialforum/storage"
)

// ErrNotFound reports that the targeted entity has no relational row. A
// concurrent repeat delete of the same id lands here as well: the relational
// delete is the linearization point.
var ErrNotFound = errors.New("entity not found")

// PostStore is the relational surface the deleter and reconciler need for
// posts. Implemented by repository.Posts; faked in tests.
type PostStore interface {
	FindByID(ctx context.Context, id uint) (*models.Post, error)
	FindByUserID(ctx context.Context, userID uint) ([]models.Post, error)
	FindAll(ctx context.Context) ([]models.Post, error)
	DeleteByID(ctx context.Context, id uint) error
}

// UserStore is the relational surface the deleter needs for users.
type UserStore interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	DeleteByID(ctx context.Context, id uint) error
}

// ObjectDeleter is the slice of the object store the deleter consumes.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// Deleter removes users and posts across the relational store and the object
// store. The two cannot be updated in one transaction, so object-store
// cleanup is best-effort: a failed media delete is logged and left for the
// orphan reconciler, while the relational delete stays authoritative.
type Deleter struct {
	posts PostStore
	users UserStore
	store ObjectDeleter
	log   *zap.SugaredLogger
}

// NewDeleter wires a Deleter.
func NewDeleter(posts PostStore, users UserStore, store ObjectDeleter, log *zap.SugaredLogger) *Deleter {
	return &Deleter{posts: posts, users: users, store: store, log: log}
}

// DeletePost removes one post and its media. Media cleanup runs before the
// relational delete, because after the row is gone its references are no
// longer retrievable. Object-store failures never block the relational
// delete; a missing post returns ErrNotFound with zero object-store calls.
func (d *Deleter) DeletePost(ctx context.Context, id uint) error {
	// once started, deletion runs to completion even if the caller goes away,
	// so media cleanup and the row delete cannot be split by cancellation
	ctx = context.WithoutCancel(ctx)

	post, err := d.posts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load post %d: %w", id, err)
	}

	d.cleanupMedia(ctx, post)

	if err := d.posts.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete post %d: %w", id, err)
	}

	d.log.Infow("post deleted", "post_id", id)
	return nil
}

// DeleteUser removes one user, the media of every post they own, and (via the
// relational cascade) their posts, comments and likes.
func (d *Deleter) DeleteUser(ctx context.Context, id uint) error {
	ctx = context.WithoutCancel(ctx)

	if _, err := d.users.FindByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load user %d: %w", id, err)
	}

	posts, err := d.posts.FindByUserID(ctx, id)
	if err != nil {
		return fmt.Errorf("load posts of user %d: %w", id, err)
	}
	for i := range posts {
		d.cleanupMedia(ctx, &posts[i])
	}

	if err := d.users.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	d.log.Infow("user deleted", "user_id", id, "posts_cleaned", len(posts))
	return nil
}

// cleanupMedia deletes every resolvable media object of the post. Each
// attempt is independent; failures degrade to "orphan now, reconcile later".
func (d *Deleter) cleanupMedia(ctx context.Context, post *models.Post) {
	for _, ref := range post.MediaReferences() {
		key := storage.ResolveMediaKey(ref)
		if key == "" {
			continue
		}
		if err := d.store.DeleteObject(ctx, key); err != nil {
			d.log.Warnw("media cleanup failed, leaving orphan for reconciliation",
				"post_id", post.ID, "key", key, "err", err)
		}
	}
}
