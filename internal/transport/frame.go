package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// CommandExecute is the only outbound frame command.
	CommandExecute = "backend.execute"
	// TypeResponse is the inbound frame type answering CommandExecute.
	TypeResponse = "backend.response"
)

// OutboundFrame asks the host to run one remote command.
type OutboundFrame struct {
	Command   string          `json:"command"`
	RequestID string          `json:"requestId"`
	CommandID string          `json:"commandId"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// InboundFrame is the host's answer to an OutboundFrame.
type InboundFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	OK        bool            `json:"ok"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Envelope is the optional result wrapper a remote command may put in
// InboundFrame.Data.
type Envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// rawFrame keeps every field raw so the shape can be checked before use.
type rawFrame struct {
	Type      string          `json:"type"`
	RequestID json.RawMessage `json:"requestId"`
	OK        json.RawMessage `json:"ok"`
	Data      json.RawMessage `json:"data"`
	Error     json.RawMessage `json:"error"`
}

// peekResponse reports the request id of a backend.response frame. ok is
// false for frames that are not responses or carry no string id; those
// frames cannot be correlated and are dropped by the caller.
func peekResponse(data []byte) (raw rawFrame, requestID string, ok bool) {
	if err := json.Unmarshal(data, &raw); err != nil {
		return raw, "", false
	}
	if raw.Type != TypeResponse {
		return raw, "", false
	}
	if err := json.Unmarshal(raw.RequestID, &requestID); err != nil || requestID == "" {
		return raw, "", false
	}
	return raw, requestID, true
}

// resolveResponse validates a correlated frame and unwraps the result.
func resolveResponse(commandID string, raw rawFrame) (json.RawMessage, error) {
	okVal, err := decodeBool(raw.OK)
	if err != nil {
		return nil, fmt.Errorf("%w: ok: %v", ErrProtocolViolation, err)
	}
	msg, err := decodeErrorText(raw.Error)
	if err != nil {
		return nil, fmt.Errorf("%w: error: %v", ErrProtocolViolation, err)
	}
	if !okVal {
		return nil, &RemoteCommandError{CommandID: commandID, Message: orDefault(msg)}
	}
	return unwrapEnvelope(commandID, raw.Data)
}

// unwrapEnvelope strips one nested {ok, data, error} level when data is an
// object carrying an "ok" key.
func unwrapEnvelope(commandID string, data json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrProtocolViolation, err)
	}
	okRaw, nested := fields["ok"]
	if !nested {
		return trimmed, nil
	}
	okVal, err := decodeBool(okRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: data.ok: %v", ErrProtocolViolation, err)
	}
	msg, err := decodeErrorText(fields["error"])
	if err != nil {
		return nil, fmt.Errorf("%w: data.error: %v", ErrProtocolViolation, err)
	}
	if !okVal || msg != "" {
		return nil, &RemoteCommandError{CommandID: commandID, Message: orDefault(msg)}
	}
	return bytes.TrimSpace(fields["data"]), nil
}

func decodeBool(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, fmt.Errorf("missing")
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("want boolean, got %s", raw)
	}
	return v, nil
}

// decodeErrorText accepts a string error or an object with a message field.
func decodeErrorText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Message == "" {
		return "", fmt.Errorf("want string, got %s", raw)
	}
	return obj.Message, nil
}

func orDefault(msg string) string {
	if msg == "" {
		return "remote command failed"
	}
	return msg
}
