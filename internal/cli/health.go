package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var realtime bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}

			if realtime {
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()

				// Anonymous connections are accepted, so dialing is enough
				rc, err := dial(ctx, "")
				if err != nil {
					result.Realtime = "unreachable"
				} else {
					result.Realtime = "ok"
					_ = rc.Close()
				}
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&realtime, "realtime", false, "Also check the websocket endpoint")

	return cmd
}
