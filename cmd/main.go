package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/livechat-backend/internal/app"
	"github.com/yungbote/livechat-backend/internal/data/db"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/services"
)

var (
	rootCmd = &cobra.Command{
		Use:          "livechat",
		Short:        "Multi-tenant chat backend with AI answers and operator takeover",
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API and socket endpoint",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema and indexes, then exit",
		RunE:  runMigrate,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token signed with JWT_SECRET_KEY",
		RunE:  runToken,
	}

	tokenTenantID int64
	tokenUserID   int64
	tokenTTL      time.Duration
)

func init() {
	tokenCmd.Flags().Int64Var(&tokenTenantID, "tenant", 0, "tenant id the operator belongs to")
	tokenCmd.Flags().Int64Var(&tokenUserID, "user", 0, "operator user id")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("tenant")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	defer pg.Close()
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		return fmt.Errorf("postgres automigrate: %w", err)
	}
	log.Info("Migrations applied", "database", cfg.Postgres.Name)
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	auth := services.NewAuthService(logger.Nop(), cfg.JWTSecretKey)
	token, err := auth.IssueOperatorToken(tokenTenantID, tokenUserID, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
