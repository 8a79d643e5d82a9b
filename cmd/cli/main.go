// The foliobase CLI administers a running deployment's database: it applies
// pending migrations, reports migration status and bootstraps the first
// admin account.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foliobase/foliobase/internal/auth"
	"github.com/foliobase/foliobase/internal/config"
	"github.com/foliobase/foliobase/internal/database"
	"github.com/foliobase/foliobase/internal/migrate"
	"github.com/foliobase/foliobase/internal/models"
)

func main() {
	root := &cobra.Command{
		Use:           "foliobase",
		Short:         "Foliobase administration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd(), adminCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openDB() (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage schema migrations",
	}

	var fresh bool
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			engine := migrate.NewEngine(db.Pool, os.DirFS(cfg.DB.MigrationsPath))
			engine.ForceFresh = fresh
			report := engine.Run(cmd.Context())
			printReport(report)
			if report.Error != nil {
				return report.Error
			}
			return nil
		},
	}
	up.Flags().BoolVar(&fresh, "fresh", false, "treat the database as a fresh install and apply the baseline schema")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show migration status without applying anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			report := migrate.NewEngine(db.Pool, os.DirFS(cfg.DB.MigrationsPath)).Status(cmd.Context())
			printReport(report)
			return nil
		},
	}

	cmd.AddCommand(up, status)
	return cmd
}

func printReport(r migrate.Report) {
	fmt.Printf("available: %d  applied: %d  pending: %d  upToDate: %v\n",
		r.Available, r.Applied, r.Pending, r.UpToDate)
	if r.LastApplied != "" {
		fmt.Printf("last applied: %s\n", r.LastApplied)
	}
	if r.Error != nil {
		fmt.Printf("error: %v\n", r.Error)
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	create := &cobra.Command{
		Use:   "create <email> <password>",
		Short: "Create an admin account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			store := auth.NewStore(db.Pool)
			svc := auth.NewService(store, auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret)))
			user, err := svc.SignUp(context.Background(), args[0], args[1], nil)
			if err != nil {
				return err
			}
			if err := store.SetRole(context.Background(), user.ID.String(), models.RoleAdmin); err != nil {
				return err
			}
			fmt.Printf("admin %s created (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.AddCommand(create)
	return cmd
}
