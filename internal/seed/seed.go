// Package seed provisions the first admin user and the sample catalogue.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"go-inventory-tracker/internal/repository"
	"go-inventory-tracker/internal/service"
	"go-inventory-tracker/pkg/config"
)

// Run creates the admin account when SEED_ADMIN_PASSWORD is set and fills an
// empty product table with samples when SEED_SAMPLE_PRODUCTS is on. Both steps
// are no-ops on an already provisioned database.
func Run(ctx context.Context, cfg *config.Config, auth service.AuthService, products repository.ProductRepository, log *slog.Logger) error {
	if cfg.SeedAdminPassword != "" {
		created, err := auth.EnsureUser(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin user: %w", err)
		}
		if created {
			log.Info("admin user created", "username", cfg.SeedAdminUsername)
		}
	} else {
		log.Warn("SEED_ADMIN_PASSWORD not set, skipping admin user seed")
	}

	if cfg.SeedSampleProducts {
		if err := products.SeedSamples(ctx); err != nil {
			return fmt.Errorf("seed sample products: %w", err)
		}
	}
	return nil
}
