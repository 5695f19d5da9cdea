package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/patient360/portal/internal/config"
	"github.com/patient360/portal/internal/domain/chatbot"
	"github.com/patient360/portal/internal/platform/auth"
	"github.com/patient360/portal/internal/platform/backend"
	"github.com/patient360/portal/internal/platform/db"
	"github.com/patient360/portal/internal/platform/db/migrations"
	"github.com/patient360/portal/internal/platform/openapi"
	"github.com/patient360/portal/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "portal-server",
		Short:        "Patient 360 API server",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(openapiCmd())
	root.AddCommand(hashPasswordCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.HasDatabase() {
		return nil, nil, errors.New("BACKEND_DB_URL is not set")
	}
	pool, err := db.NewPool(ctx, cfg.BackendDBURL, db.PoolOptions{
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.FS, "."), pool.Close, nil
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func openapiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Write the OpenAPI document to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = cfg.OpenAPIOut
			}
			if err := openapi.NewGenerator(cfg.Version, "").WriteFile(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Output path (defaults to OPENAPI_OUT)")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for use in AUTH_USERS_FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")
			hash, err := auth.HashPassword(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Int("cost", 10, "bcrypt cost")
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// loadUserSeeds merges AUTH_USERS with AUTH_USERS_FILE. File entries win
// when a username appears in both.
func loadUserSeeds(cfg *config.Config) ([]auth.UserSeed, error) {
	seeds, err := auth.ParseUserList(cfg.AuthUsers)
	if err != nil {
		return nil, fmt.Errorf("AUTH_USERS: %w", err)
	}
	if cfg.AuthUsersFile == "" {
		return seeds, nil
	}

	fileSeeds, err := auth.LoadUserFile(cfg.AuthUsersFile)
	if err != nil {
		return nil, err
	}
	fromFile := make(map[string]bool, len(fileSeeds))
	for _, s := range fileSeeds {
		fromFile[s.Username] = true
	}
	merged := make([]auth.UserSeed, 0, len(seeds)+len(fileSeeds))
	for _, s := range seeds {
		if !fromFile[s.Username] {
			merged = append(merged, s)
		}
	}
	return append(merged, fileSeeds...), nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	seeds, err := loadUserSeeds(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load users")
	}
	creds, err := auth.NewCredentialStore(seeds, cfg.BcryptCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build credential store")
	}
	logger.Info().Strs("users", creds.Usernames()).Msg("credential store loaded")

	signingKey, generated, err := auth.ResolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid signing key")
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set; using a random key, tokens will not survive a restart")
	}

	ctx := context.Background()
	store := backend.Select(ctx, backend.Options{
		DatabaseURL:    cfg.BackendDBURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: cfg.DBConnectTimeout,
		AutoMigrate:    cfg.DBAutoMigrate,
		SeedDemoData:   cfg.SeedDemoData,
		RedisURL:       cfg.RedisURL,
	}, logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close storage")
		}
	}()

	authSvc, err := auth.NewService(creds, store.Sessions, auth.ServiceConfig{
		SigningKey: signingKey,
		Issuer:     cfg.AuthIssuer,
		TokenTTL:   cfg.AuthTokenTTL,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build auth service")
	}

	chat := chatbot.NewResponder(chatbot.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.ChatTimeout,
	}, logger)
	if !cfg.ChatDelegationEnabled() {
		logger.Info().Msg("GEMINI_API_KEY not set; chatbot answers with demo replies")
	}
	logger.Info().Bool("delegating", chat.Delegating()).Str("model", chat.Model()).Msg("chatbot configured")

	e := server.New(server.Deps{
		Config:  cfg,
		Logger:  logger,
		Backend: store,
		Auth:    authSvc,
		Chat:    chat,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().
			Str("addr", addr).
			Str("backend", string(store.Mode)).
			Str("version", cfg.Version).
			Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
