// Package main provides account and schema maintenance commands for Keystone.
package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"keystone/internal/auth"
	"keystone/internal/bootstrap"
	"keystone/internal/cache"
	"keystone/internal/config"
	"keystone/internal/database"
	"keystone/internal/repository"
	"keystone/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// env is what a command operates on. The cache shares the server's Redis so account
// changes evict the server's cached copies.
type env struct {
	db    *gorm.DB
	cfg   *config.Config
	cache *cache.Cache
}

func (e *env) users() repository.UserRepository {
	return repository.NewUserRepository(e.db, e.cache)
}

// opener connects to the database and Redis the commands operate on.
type opener func() (*env, error)

func main() {
	if err := newRootCmd(openConfigured).Execute(); err != nil {
		os.Exit(1)
	}
}

func openConfigured() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return &env{db: db, cfg: cfg, cache: cache.New(rdb)}, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Keystone maintenance commands",
		SilenceUsage: true,
	}

	root.AddCommand(newMigrateCmd(open), newUsersCmd(open))
	return root
}

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			if err := database.Migrate(e.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func newUsersCmd(open opener) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Inspect and manage accounts",
	}
	users.AddCommand(newUsersListCmd(open), newResetPasswordCmd(open), newDeleteUserCmd(open))
	return users
}

func newUsersListCmd(open opener) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			svc := service.NewUserService(e.users(), repository.NewProfileRepository(e.db))
			list, err := svc.ListUsers(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tCREATED")
			for _, u := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of users to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of users to skip")
	return cmd
}

func newResetPasswordCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <username-or-email> <new-password>",
		Short: "Replace an account's password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			svc := service.NewAuthService(
				e.users(),
				auth.NewTokenManager(e.cfg.JWTSecret),
				auth.NewPasswordHasher(auth.DefaultCost),
				e.cache,
			)
			user, err := svc.ResetPassword(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password reset for %s (ID: %d)\n", user.Username, user.ID)
			return nil
		},
	}
}

func newDeleteUserCmd(open opener) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete an account with its profile, cart, projects and notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			if !confirmed {
				return fmt.Errorf("refusing to delete user %d without --yes", id)
			}

			e, err := open()
			if err != nil {
				return err
			}
			svc := service.NewUserService(e.users(), repository.NewProfileRepository(e.db))
			if err := svc.DeleteUser(cmd.Context(), uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the deletion")
	return cmd
}
