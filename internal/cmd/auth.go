package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/live/pkg/service"
)

var authToken string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Manage the token Sidechain Live uses",
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an access token",
	Long:  "Verify an access token with the backend and store it with your identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewAuthService().Set(cmd.Context(), authToken)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Display the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewAuthService().WhoAmI(cmd.Context())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewAuthService().Logout()
	},
}

func init() {
	authSetCmd.Flags().StringVar(&authToken, "token", "", "Access token (prompted when omitted)")

	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(whoamiCmd)
	authCmd.AddCommand(logoutCmd)
}
