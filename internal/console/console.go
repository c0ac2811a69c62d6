// Package console forwards typed lines to the device session.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// Sender is the session surface the console needs.
type Sender interface {
	Send(ctx context.Context, message string) []byte
}

// Pump reads r line by line and sends every non-empty line until r is
// exhausted or ctx is done. It returns the number of lines sent.
func Pump(ctx context.Context, r io.Reader, sender Sender) (int, error) {
	if sender == nil {
		panic("console: Pump called with nil sender")
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	sent := 0
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return sent, fmt.Errorf("console: read input: %w", err)
					}
				default:
				}
				return sent, nil
			}
			if line == "" {
				continue
			}
			sender.Send(ctx, line)
			sent++

		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
}
