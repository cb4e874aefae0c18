package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/gocup/internal/model"
)

// inbound is a client message: {"event": name, "args": [...], "ack": n}
type inbound struct {
	Event model.EventName   `json:"event"`
	Args  []json.RawMessage `json:"args"`
	Ack   *int              `json:"ack,omitempty"`
}

// ackReply answers an inbound message that asked for an acknowledgement
type ackReply struct {
	Ack   int    `json:"ack"`
	Args  []any  `json:"args"`
	Error string `json:"error,omitempty"`
}

func decodeInbound(data []byte) (inbound, error) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return inbound{}, fmt.Errorf("%w: %w", model.ErrBadArguments, err)
	}
	if msg.Event == "" {
		return inbound{}, model.ErrUnknownEvent
	}
	return msg, nil
}

// arg decodes the i-th positional argument
func arg[T any](args []json.RawMessage, i int) (T, error) {
	var v T
	if i >= len(args) {
		return v, model.ErrBadArguments
	}
	if err := json.Unmarshal(args[i], &v); err != nil {
		return v, fmt.Errorf("%w: %w", model.ErrBadArguments, err)
	}
	return v, nil
}

// optionalArg decodes the i-th positional argument if present and not null
func optionalArg[T any](args []json.RawMessage, i int) (T, error) {
	var v T
	if i >= len(args) || string(args[i]) == "null" {
		return v, nil
	}
	return arg[T](args, i)
}

// gameIDArg decodes a game id given either as a string or a number
func gameIDArg(args []json.RawMessage, i int) (model.GameID, error) {
	if i >= len(args) {
		return "", model.ErrBadArguments
	}
	var s string
	if err := json.Unmarshal(args[i], &s); err == nil {
		if s == "" {
			return "", model.ErrBadArguments
		}
		return model.GameID(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(args[i], &n); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrBadArguments, err)
	}
	return model.GameID(n.String()), nil
}
