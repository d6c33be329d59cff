package router

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// Transport feeds messages to a handler and relays replies. The Telegram
// adapter and the local console both satisfy this.
type Transport interface {
	// Run blocks until ctx is done or input is exhausted, invoking handle
	// for every received message.
	Run(ctx context.Context, handle func(ctx context.Context, from int64, text string) string) error
}

// Console is a line-based transport on a reader/writer pair, used for local
// operation and tests. All input is attributed to the fixed identity, so the
// gate still applies end to end.
type Console struct {
	Identity int64
	In       io.Reader
	Out      io.Writer
}

// Run reads lines until EOF or cancellation.
func (c *Console) Run(ctx context.Context, handle func(ctx context.Context, from int64, text string) string) error {
	scanner := bufio.NewScanner(c.In)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		reply := handle(ctx, c.Identity, scanner.Text())
		if reply == "" {
			continue
		}
		if _, err := fmt.Fprintln(c.Out, reply); err != nil {
			return err
		}
	}
	return scanner.Err()
}
