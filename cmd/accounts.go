package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/internal/server"
	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/types"
)

var (
	accountEmail    string
	accountPassword string
	accountName     string
	accountRole     string
	categoryName    string
)

// withServices opens the database and hands fn the store it backs.
func withServices(ctx context.Context, fn func(ctx context.Context, store services.Store, log *zap.Logger) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()
	return fn(ctx, server.NewStore(conn), log)
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var createSuperAdminCmd = &cobra.Command{
	Use:   "create-superadmin",
	Short: "Create an active superadmin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(ctx context.Context, store services.Store, log *zap.Logger) error {
			user, err := services.NewAccountService(store, log).CreateSuperAdmin(ctx, accountEmail, accountPassword, accountName)
			if err != nil {
				return err
			}
			cmd.Printf("created superadmin %s (id %d)\n", user.Email, user.ID)
			return nil
		})
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Change the role of an existing account",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := types.ParseRole(accountRole)
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), func(ctx context.Context, store services.Store, log *zap.Logger) error {
			user, err := services.NewAccountService(store, log).AssignRole(ctx, accountEmail, role)
			if err != nil {
				return err
			}
			cmd.Printf("%s is now %s\n", user.Email, role)
			return nil
		})
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage categories",
}

var createGeneralCmd = &cobra.Command{
	Use:   "create-general",
	Short: "Create a general category visible to every user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(ctx context.Context, store services.Store, log *zap.Logger) error {
			category, err := services.NewCategoryService(store, log).CreateGeneral(ctx, categoryName)
			if err != nil {
				return err
			}
			cmd.Printf("created general category %q (id %d)\n", category.Name, category.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(userCmd, categoryCmd)
	userCmd.AddCommand(createSuperAdminCmd, setRoleCmd)
	categoryCmd.AddCommand(createGeneralCmd)

	createSuperAdminCmd.Flags().StringVar(&accountEmail, "email", "", "account email")
	createSuperAdminCmd.Flags().StringVar(&accountPassword, "password", "", "account password")
	createSuperAdminCmd.Flags().StringVar(&accountName, "name", "", "display name")
	_ = createSuperAdminCmd.MarkFlagRequired("email")
	_ = createSuperAdminCmd.MarkFlagRequired("password")

	setRoleCmd.Flags().StringVar(&accountEmail, "email", "", "account email")
	setRoleCmd.Flags().StringVar(&accountRole, "role", "", "user, admin or superadmin")
	_ = setRoleCmd.MarkFlagRequired("email")
	_ = setRoleCmd.MarkFlagRequired("role")

	createGeneralCmd.Flags().StringVar(&categoryName, "name", "", "category name")
	_ = createGeneralCmd.MarkFlagRequired("name")
}
