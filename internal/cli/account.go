package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/identity"
)

// NewRegisterCmd creates a local account and signs it in for play.
func NewRegisterCmd(configPath *string) *cobra.Command {
	var req identity.RegisterRequest
	var storePath string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a local player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOptionalConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := localStore(cfg, storePath)
			if err != nil {
				return err
			}
			user, err := identity.NewDirectory(store).Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := identity.NewCurrentUser(store).Set(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are signed in.\n", user.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm-password", "", "repeat the password")
	cmd.Flags().StringVar(&storePath, "store", "", "local account file (defaults to storage.path)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("confirm-password")
	return cmd
}

func NewLoginCmd(configPath *string) *cobra.Command {
	var email, password, storePath string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in a local player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOptionalConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := localStore(cfg, storePath)
			if err != nil {
				return err
			}
			user, err := identity.NewDirectory(store).Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := identity.NewCurrentUser(store).Set(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", user.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&storePath, "store", "", "local account file (defaults to storage.path)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func NewLogoutCmd(configPath *string) *cobra.Command {
	var storePath string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out the local player",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOptionalConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := localStore(cfg, storePath)
			if err != nil {
				return err
			}
			if err := identity.NewCurrentUser(store).Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "local account file (defaults to storage.path)")
	return cmd
}
