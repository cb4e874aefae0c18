package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Matchmaking queue commands",
	}

	cmd.AddCommand(newQueueStatusCmd())
	cmd.AddCommand(newQueuePlayCmd())

	return cmd
}

func newQueueStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the number of queued players and your wait time",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client.QueueStatus(cmd.Context())
			if err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(*status)
			return nil
		},
	}
}

func newQueuePlayCmd() *cobra.Command {
	var size int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the queue and wait for an opponent",
		Long: `Join the matchmaking queue and wait until a game is found.

Press Ctrl+C to leave the queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return play(ctx, size)
		},
	}

	cmd.Flags().IntVar(&size, "size", 19, "Board size: 9, 13 or 19")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits until interrupted)")

	return cmd
}

func play(ctx context.Context, size int) error {
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	rc, err := dial(ctx, cfg.Token)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out := NewOutput(cfg.Output)

	if _, err := rc.Call(ctx, "play", map[string]int{"boardSize": size}); err != nil {
		return err
	}

	for {
		f, err := rc.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Leave the queue before disconnecting
				_ = rc.Emit("cancel")
				out.PrintMessage("Left the queue")
				return nil
			}
			return err
		}

		switch f.Event {
		case "searching", "queueUpdated":
			if cfg.Verbose && len(f.Args) > 0 {
				var status QueueData
				if json.Unmarshal(f.Args[0], &status) == nil {
					out.PrintMessage(fmt.Sprintf("Searching... %d in queue", status.InQueue))
				}
			}
		case "gameFound":
			if len(f.Args) == 0 {
				return errors.New("malformed gameFound event")
			}
			var game Game
			if err := json.Unmarshal(f.Args[0], &game); err != nil {
				return fmt.Errorf("failed to parse game: %w", err)
			}
			out.Print(game)
			return nil
		case "errorOccured":
			return fmt.Errorf("server error: %s", firstString(f.Args))
		}
	}
}

// firstString decodes the first argument as a string
func firstString(args []json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(args[0], &s); err != nil {
		return string(args[0])
	}
	return s
}
