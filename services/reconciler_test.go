package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudapp/socialforum/models"
)

func TestScanReportsUnreferencedKeys(t *testing.T) {
	posts := &fakePostStore{posts: map[uint]*models.Post{
		1: {ID: 1, ImageURL: "images/a.jpg"},
	}}
	store := &fakeObjectStore{keys: map[string]struct{}{
		"images/a.jpg": {},
		"images/b.jpg": {},
	}}
	r := NewReconciler(posts, store, testLogger())

	report, err := r.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalObjectKeys)
	assert.Equal(t, 1, report.TotalReferencedKeys)
	assert.Equal(t, []string{"images/b.jpg"}, report.OrphanKeys)
}

func TestScanIgnoresKeysOutsideMediaFolders(t *testing.T) {
	posts := &fakePostStore{}
	store := &fakeObjectStore{keys: map[string]struct{}{
		"images/a.jpg":    {},
		"videos/v.mp4":    {},
		"backups/db.sql":  {},
		"avatars/u7.png":  {},
		"images2/out.jpg": {},
	}}
	r := NewReconciler(posts, store, testLogger())

	report, err := r.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"images/a.jpg", "videos/v.mp4"}, report.OrphanKeys)
	assert.Equal(t, 5, report.TotalObjectKeys)
}

func TestScanResolvesURLReferences(t *testing.T) {
	// rows that stored full URLs still protect their objects
	posts := &fakePostStore{posts: map[uint]*models.Post{
		1: {ID: 1, ImageURL: "https://bucket.s3.amazonaws.com/images/a.jpg?X-Amz-Signature=x"},
		2: {ID: 2, VideoURL: "https://d1234.cloudfront.net/videos/v.mp4"},
	}}
	store := &fakeObjectStore{keys: map[string]struct{}{
		"images/a.jpg": {},
		"videos/v.mp4": {},
		"videos/w.mp4": {},
	}}
	r := NewReconciler(posts, store, testLogger())

	report, err := r.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"videos/w.mp4"}, report.OrphanKeys)
}

func TestScanListingFailureAborts(t *testing.T) {
	listErr := errors.New("s3 unavailable")
	r := NewReconciler(&fakePostStore{}, &fakeObjectStore{listErr: listErr}, testLogger())

	report, err := r.Scan(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, listErr)
}

func TestScanRowLoadFailureAborts(t *testing.T) {
	dbErr := errors.New("connection reset")
	posts := &fakePostStore{findErr: dbErr}
	store := &fakeObjectStore{keys: map[string]struct{}{"images/a.jpg": {}}}
	r := NewReconciler(posts, store, testLogger())

	report, err := r.Scan(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, dbErr)
}

func TestCleanupDeletesOnlyPresentKeys(t *testing.T) {
	store := &fakeObjectStore{keys: map[string]struct{}{
		"images/b.jpg": {},
	}}
	r := NewReconciler(&fakePostStore{}, store, testLogger())

	deleted := r.Cleanup(context.Background(), []string{"images/b.jpg", "images/gone.jpg"})
	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{"images/b.jpg"}, store.deletedKeys)

	// the approved set is now gone, so a repeat is a no-op
	deleted = r.Cleanup(context.Background(), []string{"images/b.jpg", "images/gone.jpg"})
	assert.Equal(t, 0, deleted)
}

func TestCleanupListingFailureDeletesNothing(t *testing.T) {
	store := &fakeObjectStore{listErr: errors.New("s3 unavailable")}
	r := NewReconciler(&fakePostStore{}, store, testLogger())

	assert.Equal(t, 0, r.Cleanup(context.Background(), []string{"images/b.jpg"}))
	assert.Empty(t, store.deletedKeys)
}

func TestCleanupSwallowsDeleteFailures(t *testing.T) {
	store := &fakeObjectStore{
		keys:      map[string]struct{}{"images/b.jpg": {}},
		deleteErr: errors.New("access denied"),
	}
	r := NewReconciler(&fakePostStore{}, store, testLogger())

	assert.Equal(t, 0, r.Cleanup(context.Background(), []string{"images/b.jpg"}))
}
