package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/live/pkg/service"
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Typing indicators for a room",
}

var roomWatchCmd = &cobra.Command{
	Use:   "watch <room>",
	Short: "Show who is typing in a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewRoomService().Watch(cmd.Context(), args[0])
	},
}

var roomTypeCmd = &cobra.Command{
	Use:   "type <room>",
	Short: "Announce typing while you enter lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewRoomService().Type(cmd.Context(), args[0])
	},
}

func init() {
	roomCmd.AddCommand(roomWatchCmd)
	roomCmd.AddCommand(roomTypeCmd)
}
