package transport

import (
	"context"
	"fmt"
)

// Endpoint locates the host bridge.
type Endpoint struct {
	Kind       Kind
	URL        string // KindWebSocket
	SocketPath string // KindUnixSocket
}

// Connect dials endpoint and attaches the resulting bridge to ch.
func Connect(ctx context.Context, ch *Channel, endpoint Endpoint, opts ...DialOption) (Bridge, error) {
	var (
		b   Bridge
		err error
	)
	switch endpoint.Kind {
	case KindWebSocket:
		b, err = DialWebSocket(ctx, endpoint.URL, ch, opts...)
	case KindUnixSocket:
		b, err = DialUnix(ctx, endpoint.SocketPath, ch, opts...)
	default:
		return nil, fmt.Errorf("connect: %w: transport %s", ErrTransportUnavailable, endpoint.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	ch.Attach(b)
	return b, nil
}
