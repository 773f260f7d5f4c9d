package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMediaKey(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"bare key passes through", "images/a.jpg", "images/a.jpg"},
		{"bare key keeps nested folders", "videos/2024/clip.mp4", "videos/2024/clip.mp4"},
		{"leading slash stripped", "/images/a.jpg", "images/a.jpg"},
		{
			"virtual hosted s3 url",
			"https://media-bucket.s3.eu-west-1.amazonaws.com/images/a.jpg",
			"images/a.jpg",
		},
		{
			"path style s3 url",
			"https://s3.amazonaws.com/media-bucket/images/a.jpg",
			"media-bucket/images/a.jpg",
		},
		{
			"presigned url query stripped",
			"https://media-bucket.s3.amazonaws.com/images/a.jpg?X-Amz-Expires=900&X-Amz-Signature=deadbeef",
			"images/a.jpg",
		},
		{
			"cloudfront url",
			"https://d1234abcd.cloudfront.net/videos/clip.mp4",
			"videos/clip.mp4",
		},
		{
			"cloudfront url with query",
			"https://d1234abcd.cloudfront.net/images/b.png?v=2",
			"images/b.png",
		},
		{
			"unknown host keeps final segment",
			"https://cdn.example.com/media/photos/pic.png",
			"pic.png",
		},
		{
			"unknown host trailing slash",
			"https://cdn.example.com/media/",
			"",
		},
		{"bare key with query stripped", "images/a.jpg?cache=1", "images/a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMediaKey(tt.ref))
		})
	}
}

func TestResolveMediaKeyIdempotent(t *testing.T) {
	refs := []string{
		"images/a.jpg",
		"/images/a.jpg",
		"https://media-bucket.s3.amazonaws.com/images/a.jpg?X-Amz-Signature=x",
		"https://d1234abcd.cloudfront.net/videos/clip.mp4",
		"https://cdn.example.com/media/pic.png",
	}
	for _, ref := range refs {
		once := ResolveMediaKey(ref)
		assert.Equal(t, once, ResolveMediaKey(once), "ref %q", ref)
	}
}
