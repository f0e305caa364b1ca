// Command learnifyctl runs operator tasks against the learnify database:
// schema migrations, seeding the professor pool and pruning expired
// sessions.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/learnify/internal/auth"
	"github.com/sakif/learnify/internal/config"
	sqliteRepo "github.com/sakif/learnify/internal/repository/sqlite"
	"github.com/sakif/learnify/internal/service"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "learnifyctl",
		Short:         "Operator utility for the learnify API database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: DB_PATH)")

	resolve := func(ctx context.Context) (string, error) {
		if dbPath != "" {
			return dbPath, nil
		}
		cfg, err := config.Load(ctx)
		if err != nil {
			return "", err
		}
		return cfg.DBPath, nil
	}

	cmd.AddCommand(newMigrateCommand(resolve))
	cmd.AddCommand(newProfessorsCommand(resolve))
	cmd.AddCommand(newSessionsCommand(resolve))
	return cmd
}

type dbResolver func(ctx context.Context) (string, error)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openMigrated opens the database with the schema up to date.
func openMigrated(ctx context.Context, resolve dbResolver) (*sqliteRepo.DB, error) {
	path, err := resolve(ctx)
	if err != nil {
		return nil, err
	}
	return sqliteRepo.New(path)
}

func newMigrateCommand(resolve dbResolver) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			path, err := resolve(ctx)
			if err != nil {
				return err
			}
			db, err := sqliteRepo.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.Migrate(ctx)
			if err != nil {
				return err
			}
			return printMigrations(cmd.OutOrStdout(), applied)
		},
	}
}

func printMigrations(w io.Writer, applied []sqliteRepo.MigrationResult) error {
	if len(applied) == 0 {
		_, err := fmt.Fprintln(w, "schema is up to date")
		return err
	}
	for _, m := range applied {
		if _, err := fmt.Fprintf(w, "applied %05d %s\n", m.Version, m.Path); err != nil {
			return err
		}
	}
	return nil
}

func newProfessorsCommand(resolve dbResolver) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "professors",
		Short: "Manage the reviewer pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newProfessorsSeedCommand(resolve))
	return cmd
}

func newProfessorsSeedCommand(resolve dbResolver) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert professors from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			list, err := loadProfessors(file)
			if err != nil {
				return err
			}

			db, err := openMigrated(ctx, resolve)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := service.NewProfessorService(db).Import(ctx, list)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "upserted %d professors from %s\n", n, file)
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file with a top-level professors list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSessionsCommand(resolve dbResolver) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			db, err := openMigrated(ctx, resolve)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := auth.NewSessionManager(db, 0).Prune(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired sessions\n", n)
			return err
		},
	})
	return cmd
}
