package streaming

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

var (
	// ErrWouldBlock may be returned by a sink that cannot accept data yet; the write is retried.
	ErrWouldBlock = errors.New("streaming: sink would block")

	// ErrConsumerClosed may be returned by a sink whose reader has gone away. The stream ends
	// without error.
	ErrConsumerClosed = errors.New("streaming: consumer closed")
)

func isWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, syscall.EAGAIN)
}

func isConsumerClosed(err error) bool {
	return errors.Is(err, ErrConsumerClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, net.ErrClosed)
}

// write delivers p to sink, continuing after partial writes. closed is set when the sink
// accepted zero bytes without error or reported that its consumer went away.
func (e *Engine) write(ctx context.Context, sink io.Writer, p []byte) (written int, closed bool, err error) {
	for len(p) > 0 {
		n, err := sink.Write(p)
		written += n
		p = p[n:]
		switch {
		case err == nil && n == 0:
			return written, true, nil
		case err == nil:
		case isWouldBlock(err):
			if n > 0 {
				continue
			}
			if err := sleep(ctx, e.settings.RetryDelay); err != nil {
				return written, false, err
			}
		case isConsumerClosed(err):
			return written, true, nil
		default:
			return written, false, err
		}
	}
	return written, false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
