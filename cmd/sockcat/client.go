package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	socklog "github.com/sockwrap/sockwrap-go/pkg/log"
	"github.com/sockwrap/sockwrap-go/pkg/socket"
)

func clientConfig(cfg Config, host string, port uint16, tls bool, logger socklog.Logger) socket.ClientConfig {
	return socket.ClientConfig{
		Host:         host,
		Port:         port,
		Timeout:      cfg.Timeout,
		TLS:          tls,
		CloseTimeout: cfg.CloseTimeout,
		Logger:       logger,
	}
}

// dial starts c and waits until it is ready or failed.
func dial(ctx context.Context, c *socket.Connection) error {
	result := make(chan *socket.ClassifiedError, 1)
	c.SubscribeToStateUpdates(func(_ *socket.Connection, state string, err *socket.ClassifiedError) {
		switch state {
		case "waiting":
			log.Printf("Waiting: %v", err)
		case "ready", "failed":
			select {
			case result <- err:
			default:
			}
		}
	})
	c.Start()

	select {
	case err := <-result:
		c.SubscribeToStateUpdates(nil)
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		c.ForceCancel()
		return ctx.Err()
	}
}

func runClient(ctx context.Context, cfg Config, logger socklog.Logger) error {
	c := socket.NewClientConnection(clientConfig(cfg, cfg.RemoteHost, cfg.RemotePort, cfg.TLS, logger))

	if err := dial(ctx, c); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("connect %s:%d: %w", cfg.RemoteHost, cfg.RemotePort, err)
	}
	infoMsg("Connected to %s:%d from local port %d\n", cfg.RemoteHost, cfg.RemotePort, c.LocalPort())

	in := newStdio()
	defer in.Close()

	err := Pump(ctx, c, in, os.Stdout)
	closeConn(c, cfg.CloseTimeout)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
