package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/live/pkg/service"
)

var followYes bool

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Follow and unfollow users",
}

var followStatusCmd = &cobra.Command{
	Use:   "status <user-id>",
	Short: "Check whether you follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewFollowService().Status(cmd.Context(), args[0])
	},
}

var followToggleCmd = &cobra.Command{
	Use:   "toggle <user-id>",
	Short: "Follow a user, or unfollow if you already do",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewFollowService().Toggle(cmd.Context(), args[0], followYes)
	},
}

func init() {
	followToggleCmd.Flags().BoolVarP(&followYes, "yes", "y", false, "Do not ask before unfollowing")

	followCmd.AddCommand(followStatusCmd)
	followCmd.AddCommand(followToggleCmd)
}
