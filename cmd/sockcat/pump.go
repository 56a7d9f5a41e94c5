package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/muesli/cancelreader"

	"github.com/sockwrap/sockwrap-go/pkg/socket"
)

// sendChunk is the largest slice of input handed to one WriteData call.
const sendChunk = 32 * 1024

// Pump copies in to c and c to out until the peer ends its stream, an I/O
// error occurs or ctx is done. End of input stops sending but keeps
// receiving.
func Pump(ctx context.Context, c *socket.Connection, in io.Reader, out io.Writer) error {
	recvDone := make(chan error, 1)
	receive(c, func(data []byte) error {
		_, err := out.Write(data)
		return err
	}, recvDone)

	sendDone := make(chan error, 1)
	go func() { sendDone <- send(c, in) }()

	for {
		select {
		case err := <-recvDone:
			return err
		case err := <-sendDone:
			if err != nil {
				return err
			}
			sendDone = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Echo writes everything received on c back to it until the peer ends its
// stream, an I/O error occurs or ctx is done.
func Echo(ctx context.Context, c *socket.Connection) error {
	done := make(chan error, 1)
	receive(c, func(data []byte) error {
		// Writes queue in order behind each other, so there is no need to
		// wait for completion here.
		c.WriteData(bytes.Clone(data), nil)
		return nil
	}, done)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// receive reads from c into sink until end of stream or an error, then
// reports the outcome on done.
func receive(c *socket.Connection, sink func([]byte) error, done chan<- error) {
	c.ReadData(func(data []byte, err error, isComplete bool) {
		if len(data) > 0 {
			if werr := sink(data); werr != nil {
				done <- werr
				return
			}
		}
		switch {
		case err != nil:
			done <- err
		case isComplete:
			done <- nil
		default:
			receive(c, sink, done)
		}
	})
}

func send(c *socket.Connection, in io.Reader) error {
	buf := make([]byte, sendChunk)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if werr := writeSync(c, buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, cancelreader.ErrCanceled) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// writeSync writes data and waits for the result.
func writeSync(c *socket.Connection, data []byte) error {
	done := make(chan error, 1)
	c.WriteData(data, func(_ int, err error) { done <- err })
	return <-done
}

// closeConn closes c and waits for completion, bounded by the close
// timeout plus a grace period.
func closeConn(c *socket.Connection, closeTimeout time.Duration) {
	done := make(chan struct{})
	c.Close(func() { close(done) })
	if closeTimeout <= 0 {
		closeTimeout = socket.DefaultCloseTimeout
	}
	waitOrTimeout(done, closeTimeout+time.Second)
}
