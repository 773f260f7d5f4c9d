package models

import "time"

// Post represents a forum post created by a user. ImageURL and VideoURL hold
// media references: either bare object-storage keys or previously resolved
// access URLs. They reference, but do not own, objects in the media bucket.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ImageURL   string    `gorm:"size:1024" json:"image_url"`
	VideoURL   string    `gorm:"size:1024" json:"video_url"`
	MediaType  string    `gorm:"size:16;default:'text'" json:"media_type"`
	ShareToken string    `gorm:"size:64;index" json:"share_token"`
	ShareCount int       `gorm:"default:0" json:"share_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments   []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments"`
	Likes      []Like    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// MediaReferences returns the non-empty media reference strings stored on the
// post, in a fixed order (image first).
func (p *Post) MediaReferences() []string {
	refs := make([]string, 0, 2)
	if p.ImageURL != "" {
		refs = append(refs, p.ImageURL)
	}
	if p.VideoURL != "" {
		refs = append(refs, p.VideoURL)
	}
	return refs
}
