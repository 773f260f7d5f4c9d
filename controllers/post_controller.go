package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cloudapp/socialforum/config"
	"github.com/cloudapp/socialforum/middleware"
	"github.com/cloudapp/socialforum/models"
	"github.com/cloudapp/socialforum/services"
	"github.com/cloudapp/socialforum/storage"
	"github.com/cloudapp/socialforum/utils"
)

// PostController manages posts and comments.
type PostController struct {
	db      *gorm.DB
	store   storage.ObjectStore
	deleter *services.Deleter
}

// NewPostController creates a PostController.
func NewPostController(db *gorm.DB, store storage.ObjectStore, deleter *services.Deleter) *PostController {
	return &PostController{db: db, store: store, deleter: deleter}
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Content   string `json:"content" binding:"required"`
		ImageURL  string `json:"image_url"`
		VideoURL  string `json:"video_url"`
		MediaType string `json:"media_type"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	principal := middleware.CurrentPrincipal(ctx)
	if principal == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "content cannot be empty")
		return
	}

	mediaType := req.MediaType
	if mediaType == "" {
		switch {
		case req.VideoURL != "":
			mediaType = "video"
		case req.ImageURL != "":
			mediaType = "image"
		default:
			mediaType = "text"
		}
	}

	post := models.Post{
		UserID:     principal.UserID,
		Content:    content,
		ImageURL:   req.ImageURL,
		VideoURL:   req.VideoURL,
		MediaType:  mediaType,
		ShareToken: uuid.NewString(),
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.Success(ctx, gin.H{"post": p.withMediaURLs(ctx, post)})
}

// ListPosts returns paginated posts including author information. Pages are
// cached briefly in redis; every write path invalidates the prefix.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	cacheKey := fmt.Sprintf("cache:posts:list:%d:%d", page, pageSize)
	if raw, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", raw)
		return
	}

	var posts []models.Post
	var total int64

	if err := p.db.Model(&models.Post{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}

	if err := p.db.Preload("User").Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	items := make([]gin.H, 0, len(posts))
	for _, post := range posts {
		items = append(items, p.withMediaURLs(ctx, post))
	}

	data := gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}

	// cache the full envelope so hits can be served byte for byte
	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: data}, 30*time.Second)
	utils.Success(ctx, data)
}

// GetPost returns a single post by id.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}

	var post models.Post
	if err := p.db.Preload("User").Preload("Comments").Preload("Comments.User").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to get post")
		return
	}
	utils.Success(ctx, gin.H{"post": p.withMediaURLs(ctx, post)})
}

// ListUserPosts returns all posts of one user.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	userID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid user id")
		return
	}

	var posts []models.Post
	if err := p.db.Preload("User").Where("user_id = ?", userID).
		Order("created_at DESC").Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to list posts")
		return
	}

	items := make([]gin.H, 0, len(posts))
	for _, post := range posts {
		items = append(items, p.withMediaURLs(ctx, post))
	}
	utils.Success(ctx, gin.H{"items": items})
}

// DeletePost removes a post together with its stored media. Admins can delete
// any post; owners only their own. The ownership check happens here because
// it needs the loaded row; the policy already guaranteed some principal.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}

	principal := middleware.CurrentPrincipal(ctx)
	if principal == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var post models.Post
	if err := p.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to get post")
		return
	}

	if !principal.IsAdmin() && post.UserID != principal.UserID {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	if err := p.deleter.DeletePost(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	deletedBy := "OWNER"
	if principal.IsAdmin() && post.UserID != principal.UserID {
		deletedBy = "ADMIN"
	}
	utils.Success(ctx, gin.H{"post_id": id, "deleted_by": deletedBy})
}

// SharePost returns a stable share link for a post and bumps its counter.
func (p *PostController) SharePost(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}

	var post models.Post
	if err := p.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to get post")
		return
	}

	if post.ShareToken == "" {
		post.ShareToken = uuid.NewString()
	}
	post.ShareCount++
	if err := p.db.Model(&post).Updates(map[string]interface{}{
		"share_token": post.ShareToken,
		"share_count": post.ShareCount,
	}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update share token")
		return
	}

	shareURL := fmt.Sprintf("%s/api/posts/shared/%s", config.Get().OAuthRedirectBase, post.ShareToken)
	utils.Success(ctx, gin.H{"share_url": shareURL, "share_count": post.ShareCount})
}

// GetPostByShareToken resolves a shared post without authentication.
func (p *PostController) GetPostByShareToken(ctx *gin.Context) {
	token := strings.TrimSpace(ctx.Param("token"))
	if token == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "missing share token")
		return
	}

	var post models.Post
	if err := p.db.Preload("User").Where("share_token = ?", token).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40421, "post not found for share token")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to get post")
		return
	}
	utils.Success(ctx, gin.H{"post": p.withMediaURLs(ctx, post)})
}

// CreateComment adds a comment to a post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40026, "invalid request payload")
		return
	}

	principal := middleware.CurrentPrincipal(ctx)
	if principal == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
		return
	}

	comment := models.Comment{
		PostID:  postID,
		UserID:  principal.UserID,
		Content: utils.Sanitize(strings.TrimSpace(req.Content)),
	}
	if comment.Content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40027, "comment cannot be empty")
		return
	}
	if err := p.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to create comment")
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment removes a comment; owners and admins only.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("commentId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40028, "invalid comment id")
		return
	}

	principal := middleware.CurrentPrincipal(ctx)
	if principal == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var comment models.Comment
	if err := p.db.First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40422, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to get comment")
		return
	}

	if !principal.IsAdmin() && comment.UserID != principal.UserID {
		utils.Error(ctx, http.StatusForbidden, 40303, "you can only delete your own comments")
		return
	}

	if err := p.db.Delete(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"comment_id": id})
}

// withMediaURLs converts stored media references into access URLs for the
// response without mutating the stored reference.
func (p *PostController) withMediaURLs(ctx *gin.Context, post models.Post) gin.H {
	out := gin.H{
		"id":          post.ID,
		"user_id":     post.UserID,
		"content":     post.Content,
		"media_type":  post.MediaType,
		"share_token": post.ShareToken,
		"share_count": post.ShareCount,
		"created_at":  post.CreatedAt,
		"author":      gin.H{"id": post.User.ID, "username": post.User.Username, "avatar_url": post.User.AvatarURL},
	}
	if post.ImageURL != "" {
		out["image_url"] = p.accessURL(ctx, post.ImageURL)
	}
	if post.VideoURL != "" {
		out["video_url"] = p.accessURL(ctx, post.VideoURL)
	}
	if len(post.Comments) > 0 {
		out["comments"] = post.Comments
	}
	return out
}

func (p *PostController) accessURL(ctx *gin.Context, ref string) string {
	key := storage.ResolveMediaKey(ref)
	if key == "" {
		return ref
	}
	url, err := p.store.PresignDownload(ctx.Request.Context(), key)
	if err != nil {
		utils.Sugar.Warnw("presign download failed", "key", key, "err", err)
		return ref
	}
	return url
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page, pageSize := 1, 10
	if v := strings.TrimSpace(pageStr); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := strings.TrimSpace(sizeStr); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}
	return page, pageSize
}

func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
