package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameShowCmd())
	cmd.AddCommand(newGameHistoryCmd())
	cmd.AddCommand(newGameChatCmd())
	cmd.AddCommand(newGameCancelCmd())
	cmd.AddCommand(newGameMoveCmd())
	cmd.AddCommand(newGamePassCmd())
	cmd.AddCommand(newGameResignCmd())

	return cmd
}

func newGameShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := client.Game(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(*game)
			return nil
		},
	}
}

func newGameHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the chat history of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := client.ChatHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(*history)
			return nil
		},
	}
}

func newGameChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <id> <message>",
		Short: "Send a chat message to a game room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := call(cmd.Context(), "gameChatMessage", args[0], args[1])
			if err != nil {
				return err
			}
			var entry ChatEntry
			if len(reply) > 0 {
				if err := json.Unmarshal(reply[0], &entry); err != nil {
					return fmt.Errorf("failed to parse chat entry: %w", err)
				}
			}
			NewOutput(cfg.Output).Print(entry)
			return nil
		},
	}
}

func newGameCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a game before the first move",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := call(cmd.Context(), "cancelGame", args[0])
			if err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage(fmt.Sprintf("Game %s cancelled by %s", args[0], firstString(reply)))
			return nil
		},
	}
}

func newGameMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <x> <y>",
		Short: "Place a stone",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid x %q", args[1])
			}
			y, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid y %q", args[2])
			}
			return printMove(call(cmd.Context(), "playMove", args[0], map[string]int{"x": x, "y": y}))
		},
	}
}

func newGamePassCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pass <id>",
		Short: "Pass your turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMove(call(cmd.Context(), "pass", args[0]))
		},
	}
}

func newGameResignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resign <id>",
		Short: "Resign a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMove(call(cmd.Context(), "resign", args[0]))
		},
	}
}

// call performs one acknowledged request over an authenticated connection
func call(ctx context.Context, event string, args ...any) ([]json.RawMessage, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	rc, err := dial(ctx, cfg.Token)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return rc.Call(ctx, event, args...)
}

// dial connects to the configured server's realtime endpoint
func dial(ctx context.Context, token string) (*RealtimeClient, error) {
	url, err := cfg.RealtimeURL()
	if err != nil {
		return nil, err
	}
	return DialRealtime(ctx, url, token)
}

func printMove(reply []json.RawMessage, err error) error {
	if err != nil {
		return err
	}
	var move Move
	if len(reply) > 0 {
		if err := json.Unmarshal(reply[0], &move); err != nil {
			return fmt.Errorf("failed to parse move: %w", err)
		}
	}
	NewOutput(cfg.Output).Print(move)
	return nil
}
