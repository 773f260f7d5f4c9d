package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudapp/socialforum/models"
)

type fakePostStore struct {
	posts      map[uint]*models.Post
	findErr    error
	deleteErr  error
	deletedIDs []uint
}

func (f *fakePostStore) FindByID(_ context.Context, id uint) (*models.Post, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if p, ok := f.posts[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (f *fakePostStore) FindByUserID(_ context.Context, userID uint) ([]models.Post, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Post
	for _, p := range f.posts {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePostStore) FindAll(_ context.Context) ([]models.Post, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Post
	for _, p := range f.posts {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePostStore) DeleteByID(_ context.Context, id uint) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.posts[id]; !ok {
		return ErrNotFound
	}
	delete(f.posts, id)
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type fakeUserStore struct {
	users      map[uint]*models.User
	deletedIDs []uint
}

func (f *fakeUserStore) FindByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeUserStore) DeleteByID(_ context.Context, id uint) error {
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type fakeObjectStore struct {
	keys        map[string]struct{}
	deleteErr   error
	deletedKeys []string
	listErr     error
}

func (f *fakeObjectStore) DeleteObject(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.keys, key)
	f.deletedKeys = append(f.deletedKeys, key)
	return nil
}

func (f *fakeObjectStore) ListAllKeys(_ context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]string, 0, len(f.keys))
	for k := range f.keys {
		out = append(out, k)
	}
	return out, nil
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestDeletePostRemovesMediaAndRow(t *testing.T) {
	posts := &fakePostStore{posts: map[uint]*models.Post{
		1: {ID: 1, UserID: 7, ImageURL: "images/a.jpg", VideoURL: "videos/v.mp4"},
	}}
	store := &fakeObjectStore{keys: map[string]struct{}{
		"images/a.jpg": {},
		"videos/v.mp4": {},
	}}
	d := NewDeleter(posts, &fakeUserStore{}, store, testLogger())

	require.NoError(t, d.DeletePost(context.Background(), 1))
	assert.ElementsMatch(t, []string{"images/a.jpg", "videos/v.mp4"}, store.deletedKeys)
	assert.Equal(t, []uint{1}, posts.deletedIDs)
}

func TestDeletePostResolvesStoredURLs(t *testing.T) {
	posts := &fakePostStore{posts: map[uint]*models.Post{
		1: {ID: 1, ImageURL: "https://bucket.s3.amazonaws.com/images/a.jpg?X-Amz-Signature=x"},
	}}
	store := &fakeObjectStore{keys: map[string]struct{}{"images/a.jpg": {}}}
	d := NewDeleter(posts, &fakeUserStore{}, store, testLogger())

	require.NoError(t, d.DeletePost(context.Background(), 1))
	assert.Equal(t, []string{"images/a.jpg"}, store.deletedKeys)
}

func TestDeletePostMediaFailureDoesNotBlockRowDelete(t *testing.T) {
	posts := &fakePostStore{posts: map[uint]*models.Post{
		1: {ID: 1, ImageURL: "images/a.jpg", VideoURL: "videos/v.mp4"},
	}}
	store := &fakeObjectStore{deleteErr: errors.New("s3 unavailable")}
	d := NewDeleter(posts, &fakeUserStore{}, store, testLogger())

	require.NoError(t, d.DeletePost(context.Background(), 1))
	assert.Equal(t, []uint{1}, posts.deletedIDs)
}

func TestDeletePostNotFoundTouchesNoObjects(t *testing.T) {
	posts := &fakePostStore{posts: map[uint]*models.Post{}}
	store := &fakeObjectStore{keys: map[string]struct{}{"images/a.jpg": {}}}
	d := NewDeleter(posts, &fakeUserStore{}, store, testLogger())

	err := d.DeletePost(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.deletedKeys)
}

func TestDeletePostRepeatedDeleteReturnsNotFound(t *testing.T) {
	posts := &fakePostStore{posts: map[uint]*models.Post{
		1: {ID: 1, ImageURL: "images/a.jpg"},
	}}
	store := &fakeObjectStore{keys: map[string]struct{}{"images/a.jpg": {}}}
	d := NewDeleter(posts, &fakeUserStore{}, store, testLogger())

	require.NoError(t, d.DeletePost(context.Background(), 1))
	assert.ErrorIs(t, d.DeletePost(context.Background(), 1), ErrNotFound)
}

func TestDeletePostRelationalFailurePropagates(t *testing.T) {
	dbErr := errors.New("connection reset")
	posts := &fakePostStore{
		posts:     map[uint]*models.Post{1: {ID: 1}},
		deleteErr: dbErr,
	}
	d := NewDeleter(posts, &fakeUserStore{}, &fakeObjectStore{}, testLogger())

	err := d.DeletePost(context.Background(), 1)
	assert.ErrorIs(t, err, dbErr)
}

func TestDeletePostSurvivesCanceledContext(t *testing.T) {
	posts := &fakePostStore{posts: map[uint]*models.Post{
		1: {ID: 1, ImageURL: "images/a.jpg"},
	}}
	store := &fakeObjectStore{keys: map[string]struct{}{"images/a.jpg": {}}}
	d := NewDeleter(posts, &fakeUserStore{}, store, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, d.DeletePost(ctx, 1))
	assert.Equal(t, []string{"images/a.jpg"}, store.deletedKeys)
}

func TestDeleteUserCleansAllOwnedMedia(t *testing.T) {
	posts := &fakePostStore{posts: map[uint]*models.Post{
		1: {ID: 1, UserID: 7, ImageURL: "images/a.jpg"},
		2: {ID: 2, UserID: 7, VideoURL: "videos/v.mp4"},
		3: {ID: 3, UserID: 8, ImageURL: "images/other.jpg"},
	}}
	users := &fakeUserStore{users: map[uint]*models.User{7: {ID: 7, Username: "seven"}}}
	store := &fakeObjectStore{keys: map[string]struct{}{
		"images/a.jpg":     {},
		"videos/v.mp4":     {},
		"images/other.jpg": {},
	}}
	d := NewDeleter(posts, users, store, testLogger())

	require.NoError(t, d.DeleteUser(context.Background(), 7))
	assert.ElementsMatch(t, []string{"images/a.jpg", "videos/v.mp4"}, store.deletedKeys)
	assert.Equal(t, []uint{7}, users.deletedIDs)
	// other users' media untouched
	assert.Contains(t, store.keys, "images/other.jpg")
}

func TestDeleteUserNotFound(t *testing.T) {
	d := NewDeleter(&fakePostStore{}, &fakeUserStore{}, &fakeObjectStore{}, testLogger())
	assert.ErrorIs(t, d.DeleteUser(context.Background(), 99), ErrNotFound)
}
