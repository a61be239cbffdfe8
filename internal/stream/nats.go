package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

var errNATSClosed = errors.New("nats connection closed")

// NATSTransport receives events published on a NATS subject. The endpoint
// passed to Dial is the subject (see NATSSubject). Client library
// reconnects are disabled so the Channel decides when to retry.
type NATSTransport struct {
	URL     string
	Options []nats.Option
}

// Dial connects to the server and subscribes to the subject
func (t *NATSTransport) Dial(ctx context.Context, subject string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	closed := make(chan struct{})
	var once sync.Once
	markClosed := func() { once.Do(func() { close(closed) }) }

	opts := []nats.Option{
		nats.Name("claimgraph"),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, _ error) { markClosed() }),
		nats.ClosedHandler(func(_ *nats.Conn) { markClosed() }),
	}
	opts = append(opts, t.Options...)

	nc, err := nats.Connect(t.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", t.URL, err)
	}

	msgs := make(chan *nats.Msg, 256)
	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("flush subscription %s: %w", subject, err)
	}

	return &natsConn{
		nc:      nc,
		sub:     sub,
		subject: subject,
		msgs:    msgs,
		closed:  closed,
	}, nil
}

type natsConn struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	msgs    chan *nats.Msg
	closed  chan struct{}
}

func (c *natsConn) Read() ([]byte, error) {
	select {
	case msg := <-c.msgs:
		return msg.Data, nil
	case <-c.closed:
		return nil, errNATSClosed
	}
}

// Write publishes on the subject's client reply channel
func (c *natsConn) Write(data []byte) error {
	return c.nc.Publish(c.subject+".client", data)
}

func (c *natsConn) Close() error {
	_ = c.sub.Unsubscribe()
	c.nc.Close()
	return nil
}
