package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"perfreview/internal/app/server"
	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/review"
	"perfreview/internal/platform/config"
	"perfreview/internal/platform/db"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap(true)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		app, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()
		return app.Run(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap(false)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}

		pool, err := db.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := db.Migrate(cmd.Context(), pool, cfg.MigrationsDir, logger)
		if err != nil {
			return err
		}
		logger.Info("migrations complete", zap.Strings("applied", applied))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the bootstrap company and HR administrator",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap(false)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		if cfg.StoreDriver != config.StoreDriverPostgres || cfg.DatabaseURL == "" {
			return errors.New("seed needs the postgres store and DATABASE_URL")
		}

		pool, err := db.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		result, err := db.Seed(cmd.Context(), review.NewPGStore(pool), cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "company %s (created=%t)\nadmin %s (created=%t)\n",
			result.CompanyID, result.CompanyCreated, result.AdminID, result.AdminCreated)
		return nil
	},
}

var (
	tokenUserID    string
	tokenCompanyID string
	tokenRole      string
	tokenTTL       time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed session token for local testing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is required")
		}
		if _, ok := auth.ParseRole(tokenRole); !ok {
			return fmt.Errorf("unknown role %q", tokenRole)
		}
		token, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{
			UserID:    tokenUserID,
			CompanyID: tokenCompanyID,
			RoleName:  tokenRole,
		}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id")
	tokenCmd.Flags().StringVar(&tokenCompanyID, "company", "", "company id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleHR), "hr, manager or employee")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("company")
}
