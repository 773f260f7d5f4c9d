package models

import "time"

// Like records a single user liking a single post. It exists mainly so the
// relational cascade on user/post deletion covers every child table.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null;uniqueIndex:idx_likes_post_user" json:"post_id"`
	UserID    uint      `gorm:"index;not null;uniqueIndex:idx_likes_post_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
