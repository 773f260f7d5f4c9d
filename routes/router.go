package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cloudapp/socialforum/config"
	"github.com/cloudapp/socialforum/controllers"
	"github.com/cloudapp/socialforum/middleware"
	"github.com/cloudapp/socialforum/repository"
	"github.com/cloudapp/socialforum/services"
	"github.com/cloudapp/socialforum/storage"
	"github.com/cloudapp/socialforum/utils"
)

// SetupRouter wires middlewares, controllers and routes.
func SetupRouter(db *gorm.DB, store storage.ObjectStore) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	users := repository.NewUsers(db)
	posts := repository.NewPosts(db)
	deleter := services.NewDeleter(posts, users, store, utils.Sugar)
	reconciler := services.NewReconciler(posts, store, utils.Sugar)

	// identity first, then the rule table; handlers only see allowed requests
	r.Use(middleware.Authenticate(users))
	r.Use(middleware.Enforce(middleware.NewPolicy(middleware.DefaultRules())))

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db, store, deleter)
	uploadController := controllers.NewUploadController(store)
	adminController := controllers.NewAdminController(db, store, deleter, reconciler)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	usersGroup := api.Group("/users")
	usersGroup.POST("/register", middleware.RateLimitMiddleware(), authController.Register)
	usersGroup.POST("/login", middleware.RateLimitMiddleware(), authController.Login)
	usersGroup.GET("/me", authController.Me)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", authController.Logout)

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/:id", postController.GetPost)
	postsGroup.GET("/shared/:token", postController.GetPostByShareToken)
	postsGroup.GET("/user/:id", postController.ListUserPosts)
	postsGroup.POST("", postController.CreatePost)
	postsGroup.POST("/:id/share", postController.SharePost)
	postsGroup.POST("/:id/comments", postController.CreateComment)
	postsGroup.DELETE("/:id", postController.DeletePost)

	api.DELETE("/comments/:commentId", postController.DeleteComment)

	uploadGroup := api.Group("/upload")
	uploadGroup.POST("/presign", uploadController.PresignUpload)
	uploadGroup.POST("/direct", uploadController.DirectUpload)
	uploadGroup.GET("/download", uploadController.PresignDownload)

	adminGroup := api.Group("/admin")
	adminGroup.GET("/users", adminController.ListUsers)
	adminGroup.DELETE("/users/:id", adminController.DeleteUser)
	adminGroup.POST("/users/:id/promote", adminController.PromoteUser)
	adminGroup.DELETE("/posts/:id", adminController.DeletePost)
	adminGroup.GET("/s3/files", adminController.ListBucketFiles)
	adminGroup.DELETE("/s3/files", adminController.DeleteBucketFile)
	adminGroup.POST("/s3/sync", adminController.SyncBucket)
	adminGroup.POST("/s3/cleanup", adminController.CleanupBucket)
	adminGroup.GET("/stats", adminController.Stats)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
