package main

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cloudapp/socialforum/config"
	"github.com/cloudapp/socialforum/models"
	"github.com/cloudapp/socialforum/routes"
	"github.com/cloudapp/socialforum/storage"
	"github.com/cloudapp/socialforum/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Comment{}, &models.Like{})

	store, err := storage.NewS3Store(context.Background(), cfg)
	if err != nil {
		utils.Sugar.Fatalf("object store init failed: %v", err)
	}

	if err := ensureAdminUser(db, cfg); err != nil {
		utils.Sugar.Fatalf("admin bootstrap failed: %v", err)
	}

	r := routes.SetupRouter(db, store)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// ensureAdminUser creates the configured admin account on first boot and
// repairs its role if it was demoted.
func ensureAdminUser(db *gorm.DB, cfg config.AppConfig) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		utils.Sugar.Warn("admin credentials not configured, skipping bootstrap")
		return nil
	}

	var user models.User
	err := db.Where("username = ?", cfg.AdminUsername).First(&user).Error
	switch {
	case err == nil:
		if user.Role == models.RoleAdmin {
			return nil
		}
		return db.Model(&user).Update("role", models.RoleAdmin).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := utils.HashPassword(cfg.AdminPassword)
		if err != nil {
			return err
		}
		utils.Sugar.Infof("creating admin user %s", cfg.AdminUsername)
		return db.Create(&models.User{
			Username:     cfg.AdminUsername,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
			Provider:     "local",
		}).Error
	default:
		return err
	}
}
