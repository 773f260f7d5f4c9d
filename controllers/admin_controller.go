package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cloudapp/socialforum/middleware"
	"github.com/cloudapp/socialforum/models"
	"github.com/cloudapp/socialforum/services"
	"github.com/cloudapp/socialforum/storage"
	"github.com/cloudapp/socialforum/utils"
)

// AdminController exposes the administration surface: user and post
// moderation, bucket inspection and the orphan reconciliation pair.
type AdminController struct {
	db         *gorm.DB
	store      storage.ObjectStore
	deleter    *services.Deleter
	reconciler *services.Reconciler
}

// NewAdminController creates an AdminController.
func NewAdminController(db *gorm.DB, store storage.ObjectStore, deleter *services.Deleter, reconciler *services.Reconciler) *AdminController {
	return &AdminController{db: db, store: store, deleter: deleter, reconciler: reconciler}
}

// ListUsers returns every user account.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	var users []models.User
	if err := a.db.Order("created_at DESC").Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list users")
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, u := range users {
		items = append(items, gin.H{
			"id":         u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"role":       u.Role,
			"provider":   u.Provider,
			"created_at": u.CreatedAt,
		})
	}
	utils.Success(ctx, gin.H{"items": items})
}

// DeleteUser removes a user account, its posts, comments and stored media.
// Admins cannot delete themselves through this endpoint.
func (a *AdminController) DeleteUser(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid user id")
		return
	}

	if principal := middleware.CurrentPrincipal(ctx); principal != nil && principal.UserID == id {
		utils.Error(ctx, http.StatusBadRequest, 40041, "cannot delete your own account")
		return
	}

	if err := a.deleter.DeleteUser(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to delete user")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.Success(ctx, gin.H{"user_id": id})
}

// PromoteUser grants the ADMIN role to a user.
func (a *AdminController) PromoteUser(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid user id")
		return
	}

	res := a.db.Model(&models.User{}).Where("id = ?", id).Update("role", models.RoleAdmin)
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to update role")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40440, "user not found")
		return
	}
	utils.Success(ctx, gin.H{"user_id": id, "role": models.RoleAdmin})
}

// DeletePost removes any post regardless of ownership.
func (a *AdminController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid post id")
		return
	}

	if err := a.deleter.DeletePost(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40441, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.Success(ctx, gin.H{"post_id": id})
}

// ListBucketFiles lists every object key in the media bucket with an access
// URL for inspection.
func (a *AdminController) ListBucketFiles(ctx *gin.Context) {
	keys, err := a.store.ListAllKeys(ctx.Request.Context())
	if err != nil {
		utils.Sugar.Errorw("bucket listing failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to list bucket")
		return
	}

	items := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		item := gin.H{"key": key}
		if url, err := a.store.PresignDownload(ctx.Request.Context(), key); err == nil {
			item["url"] = url
		}
		items = append(items, item)
	}
	utils.Success(ctx, gin.H{"items": items, "total": len(keys)})
}

// DeleteBucketFile removes a single object by key.
func (a *AdminController) DeleteBucketFile(ctx *gin.Context) {
	key := storage.ResolveMediaKey(ctx.Query("key"))
	if key == "" {
		utils.Error(ctx, http.StatusBadRequest, 40043, "missing key")
		return
	}

	if err := a.store.DeleteObject(ctx.Request.Context(), key); err != nil {
		utils.Sugar.Errorw("bucket delete failed", "key", key, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to delete object")
		return
	}
	utils.Success(ctx, gin.H{"key": key})
}

// SyncBucket runs a read-only reconciliation scan and reports orphan keys.
func (a *AdminController) SyncBucket(ctx *gin.Context) {
	report, err := a.reconciler.Scan(ctx.Request.Context())
	if err != nil {
		utils.Sugar.Errorw("reconciliation scan failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50046, "reconciliation scan failed")
		return
	}
	utils.Success(ctx, report)
}

// CleanupBucket deletes the orphan keys submitted by the operator, typically
// the orphan list from a preceding scan, and returns how many were removed.
func (a *AdminController) CleanupBucket(ctx *gin.Context) {
	var req struct {
		Keys []string `json:"keys" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40044, "invalid request payload")
		return
	}

	deleted := a.reconciler.Cleanup(ctx.Request.Context(), req.Keys)
	utils.Success(ctx, gin.H{"requested": len(req.Keys), "deleted": deleted})
}

// Stats returns basic row counts for the dashboard.
func (a *AdminController) Stats(ctx *gin.Context) {
	var users, posts, comments int64
	if err := a.db.Model(&models.User{}).Count(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to count users")
		return
	}
	if err := a.db.Model(&models.Post{}).Count(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to count posts")
		return
	}
	if err := a.db.Model(&models.Comment{}).Count(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to count comments")
		return
	}
	utils.Success(ctx, gin.H{"users": users, "posts": posts, "comments": comments})
}
