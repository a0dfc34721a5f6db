package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"roomkey/internal/crypto"
	"roomkey/internal/domain"
)

func guestCmd() *cobra.Command {
	var displayName string
	cmd := &cobra.Command{
		Use:   "guest <invitation-token>",
		Short: "Enter a meeting via invitation token as an external guest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := args[0]

			sess, key, err := appCtx.EnterAsGuest(cmd.Context(), token, displayName)
			if err != nil {
				if te, ok := domain.IsThrottled(err); ok {
					fmt.Printf("Please wait %d seconds before knocking again.\n", te.RemainingSeconds())
					return nil
				}
				// Teardown still purges whatever the partial bootstrap stored.
				if sess.MeetingID != "" {
					wire.Guests.Dispose(sess.MeetingID)
				}
				return err
			}

			fmt.Printf("Admitted to meeting %s as %q (session %s).\nKey fingerprint: %s\n",
				sess.MeetingID, sess.DisplayName, sess.SessionID, crypto.Fingerprint(key.Slice()))
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "Guest", "display name shown to the host")
	return cmd
}
