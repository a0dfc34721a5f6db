package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"roomkey/internal/domain"
)

func leaveCmd() *cobra.Command {
	var participant string
	cmd := &cobra.Command{
		Use:   "leave <room>",
		Short: "Leave a room and wipe the held room key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room := domain.RoomID(args[0])
			if err := appCtx.LeaveRoom(room, domain.ParticipantID(participant)); err != nil {
				return err
			}
			fmt.Printf("Left %s. Room key discarded.\n", room)
			return nil
		},
	}
	cmd.Flags().StringVar(&participant, "as", "", "participant id")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
