package controllers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cloudapp/socialforum/storage"
	"github.com/cloudapp/socialforum/utils"
)

// maxDirectUploadBytes bounds the legacy multipart upload path. Larger media
// must go through presigned PUT.
const maxDirectUploadBytes = 25 << 20

var allowedUploadFolders = map[string]bool{
	"images": true,
	"videos": true,
}

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var videoContentTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
}

// UploadController issues presigned upload URLs and handles the legacy direct
// upload path.
type UploadController struct {
	store storage.ObjectStore
}

// NewUploadController creates an UploadController.
func NewUploadController(store storage.ObjectStore) *UploadController {
	return &UploadController{store: store}
}

// PresignUpload generates a short-lived PUT URL for a fresh object key. The
// client uploads directly to the bucket and then submits the returned key with
// its post.
func (u *UploadController) PresignUpload(ctx *gin.Context) {
	var req struct {
		Folder      string `json:"folder" binding:"required"`
		FileName    string `json:"file_name" binding:"required"`
		ContentType string `json:"content_type" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	folder := strings.Trim(strings.ToLower(req.Folder), "/")
	if !allowedUploadFolders[folder] {
		utils.Error(ctx, http.StatusBadRequest, 40031, "folder must be images or videos")
		return
	}
	if !contentTypeAllowed(folder, req.ContentType) {
		utils.Error(ctx, http.StatusBadRequest, 40032, "content type not allowed for folder")
		return
	}

	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), safeExt(req.FileName))
	url, err := u.store.PresignUpload(ctx.Request.Context(), key, req.ContentType)
	if err != nil {
		utils.Sugar.Errorw("presign upload failed", "key", key, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create upload url")
		return
	}

	utils.Success(ctx, gin.H{
		"key":        key,
		"upload_url": url,
		"expires_in": int(storage.UploadURLTTL.Seconds()),
	})
}

// DirectUpload accepts a multipart file and streams it into the bucket on the
// server side. Kept for clients that cannot do presigned PUTs.
func (u *UploadController) DirectUpload(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "missing file")
		return
	}
	if fileHeader.Size > maxDirectUploadBytes {
		utils.Error(ctx, http.StatusBadRequest, 40034, "file too large")
		return
	}

	folder := strings.Trim(strings.ToLower(ctx.DefaultPostForm("folder", "images")), "/")
	if !allowedUploadFolders[folder] {
		utils.Error(ctx, http.StatusBadRequest, 40031, "folder must be images or videos")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !contentTypeAllowed(folder, contentType) {
		utils.Error(ctx, http.StatusBadRequest, 40032, "content type not allowed for folder")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "cannot read file")
		return
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxDirectUploadBytes+1))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "cannot read file")
		return
	}
	if len(body) > maxDirectUploadBytes {
		utils.Error(ctx, http.StatusBadRequest, 40034, "file too large")
		return
	}

	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), safeExt(fileHeader.Filename))
	if err := u.store.PutObject(ctx.Request.Context(), key, body, contentType); err != nil {
		utils.Sugar.Errorw("direct upload failed", "key", key, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to store file")
		return
	}

	utils.Success(ctx, gin.H{"key": key})
}

// PresignDownload returns an access URL for an existing object key.
func (u *UploadController) PresignDownload(ctx *gin.Context) {
	key := storage.ResolveMediaKey(ctx.Query("key"))
	if key == "" {
		utils.Error(ctx, http.StatusBadRequest, 40035, "missing key")
		return
	}

	url, err := u.store.PresignDownload(ctx.Request.Context(), key)
	if err != nil {
		utils.Sugar.Errorw("presign download failed", "key", key, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to create download url")
		return
	}
	utils.Success(ctx, gin.H{"key": key, "download_url": url})
}

func contentTypeAllowed(folder, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if folder == "images" {
		return imageContentTypes[ct]
	}
	return videoContentTypes[ct]
}

// safeExt returns a lowercase file extension safe to embed in an object key.
func safeExt(name string) string {
	ext := strings.ToLower(path.Ext(path.Base(name)))
	if len(ext) > 8 || strings.ContainsAny(ext, " /\\?#%") {
		return ""
	}
	return ext
}
