package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/formhub/formhub-api/internal/models"
	"github.com/formhub/formhub-api/pkg/config"
)

type userSeeder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// SeedAdmin creates the default admin account when it does not exist yet.
// Runs once at startup, before the server accepts traffic; safe to run on
// every boot.
func SeedAdmin(ctx context.Context, users userSeeder, cfg config.SeedConfig, logger *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Info("admin seeding skipped, no seed credentials configured")
		return nil
	}

	_, err := users.FindByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		logger.Debug("admin account already present", zap.String("email", cfg.AdminEmail))
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check admin account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        cfg.AdminEmail,
		PasswordHash: string(hash),
		FullName:     cfg.AdminName,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	logger.Info("admin account seeded", zap.String("email", cfg.AdminEmail))
	return nil
}
