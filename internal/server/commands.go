package server

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/buildinfo"
	"github.com/dmitrijs2005/vaxsync/internal/server/auth"
	"github.com/dmitrijs2005/vaxsync/internal/server/config"
	"github.com/dmitrijs2005/vaxsync/internal/server/models"
	"github.com/spf13/cobra"
)

// The short flags of config.LoadConfig share os.Args with cobra.
var passConfigFlags = cobra.FParseErrWhitelist{UnknownFlags: true}

// NewRootCommand builds the server CLI around an already loaded config.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:                "vaxsync-server",
		Short:              "Reference records server for vaxsync clients",
		SilenceUsage:       true,
		FParseErrWhitelist: passConfigFlags,
	}

	cmd.AddCommand(newServeCommand(cfg))
	cmd.AddCommand(newMigrateCommand(cfg))
	cmd.AddCommand(newSeedCommand(cfg))
	cmd.AddCommand(newTokenCommand(cfg))

	return cmd
}

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:                "serve",
		Short:              "Apply migrations and serve gRPC",
		FParseErrWhitelist: passConfigFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			buildinfo.PrintBuildData(cmd.OutOrStdout())

			app, err := NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Run(cmd.Context())
		},
	}
}

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:                "migrate",
		Short:              "Apply database migrations and exit",
		FParseErrWhitelist: passConfigFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Migrate(cmd.Context())
		},
	}
}

func newSeedCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:                "seed <file.json>",
		Short:              "Load guardians, patients and FAQs from a JSON file",
		Args:               cobra.ExactArgs(1),
		FParseErrWhitelist: passConfigFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			app, err := NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Migrate(cmd.Context()); err != nil {
				return err
			}
			counts, err := app.Seed(cmd.Context(), f)
			if err != nil {
				return err
			}
			for _, c := range []models.Collection{models.CollectionGuardians, models.CollectionPatients, models.CollectionFAQs} {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", c, counts[c])
			}
			return nil
		},
	}
}

func newTokenCommand(cfg *config.Config) *cobra.Command {
	var (
		guardianID string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:                "token",
		Short:              "Mint an access token for a guardian",
		FParseErrWhitelist: passConfigFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = cfg.AccessTokenValidityDuration
			}
			tok, err := auth.GenerateToken(guardianID, []byte(cfg.SecretKey), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&guardianID, "guardian", "", "guardian id the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to the configured validity)")
	_ = cmd.MarkFlagRequired("guardian")

	return cmd
}
