package stream

import "context"

// Transport opens connections to an event endpoint
type Transport interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Conn is one live connection. Read blocks until a message arrives or the
// connection ends; any error from Read means the connection is gone.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

// TransportFunc adapts a function to Transport
type TransportFunc func(ctx context.Context, endpoint string) (Conn, error)

func (f TransportFunc) Dial(ctx context.Context, endpoint string) (Conn, error) {
	return f(ctx, endpoint)
}
