package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/live/pkg/service"
)

var (
	presenceRoom  string
	presenceWatch bool
)

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "See who is around",
	Long:  "View the presence roster and publish your own status",
}

var presenceRosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "List present users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewPresenceService().Roster(cmd.Context(), presenceRoom, presenceWatch)
	},
}

var presenceSetCmd = &cobra.Command{
	Use:   "set <online|away|busy>",
	Short: "Publish your status until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewPresenceService().Set(cmd.Context(), args[0], presenceRoom)
	},
}

func init() {
	presenceRosterCmd.Flags().StringVar(&presenceRoom, "room", "", "Only users in this room")
	presenceRosterCmd.Flags().BoolVarP(&presenceWatch, "watch", "w", false, "Keep polling and reprint on every refresh")
	presenceSetCmd.Flags().StringVar(&presenceRoom, "room", "", "Room you are in")

	presenceCmd.AddCommand(presenceRosterCmd)
	presenceCmd.AddCommand(presenceSetCmd)
}
