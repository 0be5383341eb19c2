package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"pollex.nl/queryset/internal/config"
	"pollex.nl/queryset/internal/practice"
	"pollex.nl/queryset/library"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "practice",
	Short:         "Run bookshop query exercises",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	flags.String("dsn", config.MemoryDSN, "SQLite data source name")
	flags.Bool("seed", true, "Create the tables and write the default fixture before running")
	flags.Bool("sql", false, "Run plain filters as SQL against the database")
	flags.Bool("json", false, "Print results as JSON")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Int("workers", 1, "Number of exercises run at the same time")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the exercises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, ex := range practice.Catalog() {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", ex.ID, ex.Title)
			}
			return nil
		},
	}

	runCmd := &cobra.Command{
		Use:   "run [id...]",
		Short: "Run exercises, all of them when no id is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})))

			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			exercises, err := practice.Select(ids...)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg, exercises, cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(listCmd, runCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid exercise id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func run(ctx context.Context, cfg config.Config, exercises []practice.Exercise, out io.Writer) error {
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if cfg.Seed {
		slog.Debug("seeding database", "dsn", cfg.DSN)
		if err := library.SeedDB(ctx, db, library.DefaultFixture()); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	store, err := library.Open(ctx, db)
	if err != nil {
		return err
	}

	env := practice.Env{Store: store}
	if cfg.SQL {
		env.DB = db
	}

	results, err := practice.RunAll(ctx, env, exercises, cfg.Workers)
	if err != nil {
		return err
	}

	if cfg.JSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(out, "%2d  %s\n    error: %s\n", r.ID, r.Title, r.Error)
			continue
		}
		fmt.Fprintf(out, "%2d  %s\n    %v\n", r.ID, r.Title, r.Value)
	}
	return nil
}
