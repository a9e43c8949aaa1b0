package transport

import (
	"context"
	"fmt"
)

// Kind identifies how a Channel reaches its host.
type Kind int

const (
	// KindUnknown represents an unknown transport type.
	KindUnknown Kind = iota
	// KindUnixSocket is newline-delimited JSON frames over a Unix socket.
	KindUnixSocket
	// KindWebSocket is one JSON frame per WebSocket text message.
	KindWebSocket
)

// String returns the string representation of a transport type.
func (k Kind) String() string {
	switch k {
	case KindUnixSocket:
		return "unix"
	case KindWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// ParseKind parses the configuration spelling of a transport.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "unix", "unix_socket":
		return KindUnixSocket, nil
	case "websocket", "ws", "":
		return KindWebSocket, nil
	default:
		return KindUnknown, fmt.Errorf("unknown transport %q", s)
	}
}

// kindKey is the context key for transport type.
type kindKey struct{}

// WithKind returns a new context with the transport type set.
func WithKind(ctx context.Context, k Kind) context.Context {
	return context.WithValue(ctx, kindKey{}, k)
}

// KindFrom retrieves the transport type from the context.
// Returns KindUnknown if not set.
func KindFrom(ctx context.Context) Kind {
	if k, ok := ctx.Value(kindKey{}).(Kind); ok {
		return k
	}
	return KindUnknown
}
