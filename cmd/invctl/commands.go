package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go-inventory-tracker/internal/model"
	"go-inventory-tracker/internal/repository"
	"go-inventory-tracker/internal/seed"
	"go-inventory-tracker/internal/service"
	"go-inventory-tracker/pkg/config"
	"go-inventory-tracker/pkg/database"
	"go-inventory-tracker/pkg/jwt"
	"go-inventory-tracker/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// env is what every subcommand needs: configuration, a migrated database and
// the services built on top of it.
type env struct {
	cfg       *config.Config
	db        *gorm.DB
	log       *slog.Logger
	auth      service.AuthService
	inventory service.InventoryService
	products  repository.ProductRepository
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// stdout is reserved for command output such as export
	log := logger.New(os.Stderr, cfg.AppEnv)

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := model.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	tokens, err := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}

	products := repository.NewProductRepo(db)
	return &env{
		cfg:      cfg,
		db:       db,
		log:      log,
		auth:     service.NewAuthService(repository.NewUserRepo(db), tokens, log),
		products: products,
		inventory: service.NewInventoryService(products, repository.NewHistoryRepo(db), nil, nil, log, service.InventoryOptions{
			MaxPageSize:       cfg.MaxPageSize,
			ImportConcurrency: cfg.ImportConcurrency,
		}),
	}, nil
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "invctl",
		Short:        "Operator tasks for the inventory tracker",
		SilenceUsage: true,
	}
	root.AddCommand(newResetPasswordCmd(), newSeedCmd(), newExportCmd())
	return root
}

func newResetPasswordCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Overwrite a user's password and end their sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.auth.SetPassword(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password for %s has been reset\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "user to update")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password (min 6 characters)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user and sample products if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			return seed.Run(cmd.Context(), e.cfg, e.auth, e.products, e.log)
		},
	}
}

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every product as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			start := time.Now()
			if err := e.inventory.ExportProducts(cmd.Context(), w); err != nil {
				return err
			}
			e.log.Info("export finished", "out", out, "took", time.Since(start))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}
