package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"roomkey/internal/crypto"
	"roomkey/internal/domain"
)

func joinCmd() *cobra.Command {
	var participant string
	cmd := &cobra.Command{
		Use:   "join <room>",
		Short: "Enter a room as a member and establish the shared key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room := domain.RoomID(args[0])
			me := domain.ParticipantID(participant)

			key, err := appCtx.EnterRoom(cmd.Context(), room, me)
			var xerr *domain.KeyExchangeError
			switch {
			case err == nil:
				fmt.Printf("Joined %s. Key fingerprint: %s\n", room, crypto.Fingerprint(key.Slice()))
				return nil
			case errors.As(err, &xerr) && xerr.Outcome == domain.PartialReceived:
				// Degraded mode needs an explicit opt-in.
				fmt.Printf("Only %d of %d participants answered. Re-run to retry, or pass --partial to proceed.\n",
					len(xerr.Responded), len(xerr.Responded)+len(xerr.Missing))
				if proceedPartial {
					key, err := appCtx.ProceedPartial(room, me)
					if err != nil {
						return err
					}
					fmt.Printf("Joined %s with partial coverage. Key fingerprint: %s\n", room, crypto.Fingerprint(key.Slice()))
					return nil
				}
				return err
			default:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&participant, "as", "", "participant id to join as")
	cmd.Flags().BoolVar(&proceedPartial, "partial", false, "proceed when only some participants answered")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

var proceedPartial bool
