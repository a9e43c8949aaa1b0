package devhost

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/leonletto/huddle/internal/transport"
)

// Executor runs one catalog command. *Backend satisfies it.
type Executor interface {
	Execute(ctx context.Context, commandID string, args json.RawMessage) (any, error)
}

// handleFrame answers one outbound frame. ok is false for frames that get no
// reply: undecodable input, other commands, or frames without a request id.
//
// Command outcomes travel in the nested {ok, data, error} envelope with the
// outer ok set. Only an unknown command id fails the outer frame.
func handleFrame(ctx context.Context, exec Executor, logger *slog.Logger, data []byte) (reply []byte, ok bool) {
	var req transport.OutboundFrame
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Debug("devhost: undecodable frame", "error", err)
		return nil, false
	}
	if req.Command != transport.CommandExecute || req.RequestID == "" {
		logger.Debug("devhost: ignoring frame", "command", req.Command, "request_id", req.RequestID)
		return nil, false
	}

	resp := transport.InboundFrame{Type: transport.TypeResponse, RequestID: req.RequestID}
	result, execErr := exec.Execute(ctx, req.CommandID, req.Args)
	var marshalErr error
	switch {
	case errors.Is(execErr, ErrUnknownCommand):
		logger.Warn("devhost: unknown command", "command_id", req.CommandID)
		resp.Error = execErr.Error()
	case execErr != nil:
		logger.Debug("devhost: command failed", "command_id", req.CommandID, "error", execErr)
		resp.OK = true
		resp.Data, marshalErr = json.Marshal(transport.Envelope{OK: false, Error: execErr.Error()})
	default:
		resp.OK = true
		resp.Data, marshalErr = json.Marshal(transport.Envelope{OK: true, Data: result})
	}
	if marshalErr != nil {
		logger.Error("devhost: marshal result", "command_id", req.CommandID, "error", marshalErr)
		resp = transport.InboundFrame{Type: transport.TypeResponse, RequestID: req.RequestID, Error: "internal error"}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		logger.Error("devhost: marshal response", "error", err)
		return nil, false
	}
	return out, true
}
