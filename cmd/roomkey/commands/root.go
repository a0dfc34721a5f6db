package commands

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"roomkey/internal/app"
)

var (
	apiBase   string
	socketURL string
	verbose   bool

	wire   *app.Wire
	appCtx *app.App
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "roomkey",
		Short: "End-to-end encrypted room key bootstrap CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).
				With().Timestamp().Logger()

			wire = app.NewWire(app.Config{
				APIBase: apiBase,
				Log:     log,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := wire.Connect(ctx, socketURL); err != nil {
				return err
			}
			appCtx = app.New(wire)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if wire != nil {
				wire.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&apiBase, "api", "http://127.0.0.1:8080", "meeting API base URL")
	root.PersistentFlags().StringVar(&socketURL, "socket", "http://127.0.0.1:8081/ws", "signaling socket URL")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(joinCmd(), guestCmd(), leaveCmd())
	return root
}
