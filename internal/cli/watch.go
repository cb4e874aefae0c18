package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Stream the events of a game room",
		Long: `Join a game room as a spectator and stream its events in real time.

Events include:
  - userJoinedGameRoom / userLeftGameRoom: Viewer arrived or left
  - playerOnlineStatus: A participant connected or disconnected
  - gameMove: A stone was placed, a turn passed or a player resigned
  - gameUpdated: The game changed status
  - gameCancelled: The game was cancelled before the first move
  - gameChatMessage: Chat message or system notice

Logging in is optional. Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchGame(cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// StreamEvent is one event as printed by watch --json
type StreamEvent struct {
	Time  time.Time         `json:"time"`
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args"`
}

func watchGame(cmd *cobra.Command, gameID string, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc, err := dial(ctx, cfg.Token)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if _, err := rc.Call(ctx, "joinGameRoom", gameID); err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Printf("Watching game %s\n", gameID)
	}

	for {
		f, err := rc.Next(ctx)
		if err != nil {
			// Interruption is expected
			if ctx.Err() != nil {
				if !jsonOutput {
					fmt.Println("\nDisconnected")
				}
				return nil
			}
			if err == ErrDisconnected {
				if !jsonOutput {
					fmt.Println("Disconnected")
				}
				return nil
			}
			return err
		}
		printEvent(f, jsonOutput)
	}
}

func printEvent(f Frame, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		data, _ := json.Marshal(StreamEvent{Time: now, Event: f.Event, Args: f.Args})
		fmt.Println(string(data))
		return
	}

	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = string(a)
	}
	// Truncate data if it's too long for display
	display := strings.Join(parts, " ")
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	fmt.Printf("[%s] %s: %s\n", now.Format("2006-01-02 15:04:05"), f.Event, display)
}
