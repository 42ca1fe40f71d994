package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"examflow/internal/directory"
	jwttoken "examflow/internal/jwt_token"
	"examflow/internal/platform/config"
	"examflow/internal/platform/postgres"
	"examflow/pkg/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(config.FromEnv()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "examflowctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(cfg config.Server) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examflowctl",
		Short: "Examflow development CLI",
		Long: `examflowctl mints bearer tokens for local testing and loads the staff
directory into Postgres. It reads the same environment as the server.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newTokenCmd(cfg), newSeedCmd(cfg))
	return cmd
}

func newTokenCmd(cfg config.Server) *cobra.Command {
	var (
		userID   string
		role     string
		clinicID string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token for a staff member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := mintToken(cfg, userID, role, clinicID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Staff user id (UUID)")
	cmd.Flags().StringVar(&role, "role", "", "Role: nurse, doctor or admin")
	cmd.Flags().StringVar(&clinicID, "clinic", "", "Clinic id (UUID)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("clinic")
	return cmd
}

func mintToken(cfg config.Server, rawUser, rawRole, rawClinic string, ttl time.Duration) (string, error) {
	userID, err := domain.ParseUserID(rawUser)
	if err != nil {
		return "", fmt.Errorf("--user: %w", err)
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return "", fmt.Errorf("--role: %w", err)
	}
	clinicID, err := domain.ParseClinicID(rawClinic)
	if err != nil {
		return "", fmt.Errorf("--clinic: %w", err)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("--ttl must be positive")
	}
	return jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer).GenerateAccessToken(userID, role, clinicID, ttl)
}

func newSeedCmd(cfg config.Server) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Upsert staff from a JSON seed file into the Postgres directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			users, err := directory.LoadSeed(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := postgres.EnsureSchema(ctx, pool); err != nil {
				return err
			}

			dir := directory.NewPostgres(pool)
			for _, u := range users {
				if err := dir.Upsert(ctx, u); err != nil {
					return fmt.Errorf("upsert %s: %w", u.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d staff\n", len(users))
			return nil
		},
	}
}
