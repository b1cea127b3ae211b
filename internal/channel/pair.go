package channel

import (
	"context"
	"time"
)

// pairTransport links a client and a host living in the same process. Each
// request is served on its own goroutine so concurrent calls resolve
// independently and may complete out of order.
type pairTransport struct {
	host   *Host
	client *Client
}

func (p *pairTransport) Send(req Request) error {
	go func() {
		resp := p.host.Handle(context.Background(), req)
		p.client.Dispatch(resp)
	}()
	return nil
}

// Connect wires a new client directly to host over an in-process
// transport.
func Connect(host *Host, timeout time.Duration) *Client {
	t := &pairTransport{host: host}
	c := NewClient(t, timeout)
	t.client = c
	return c
}
