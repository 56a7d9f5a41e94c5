package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sockwrap/sockwrap-go/pkg/discovery"
	socklog "github.com/sockwrap/sockwrap-go/pkg/log"
	"github.com/sockwrap/sockwrap-go/pkg/socket"
)

// server serves connections delivered by a listener. In echo mode every
// connection is echoed. Otherwise one connection at a time is joined to
// stdio and others are closed.
type server struct {
	ctx          context.Context
	echo         bool
	closeTimeout time.Duration

	busy     atomic.Bool
	sessions sync.WaitGroup
}

func (s *server) accept(c *socket.Connection) {
	infoMsg("Accepted connection from port %d\n", c.RemotePort())

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		s.serve(c)
	}()
}

func (s *server) serve(c *socket.Connection) {
	defer closeConn(c, s.closeTimeout)

	var err error
	if s.echo {
		err = Echo(s.ctx, c)
	} else {
		if !s.busy.CompareAndSwap(false, true) {
			log.Printf("Already piping a connection, closing port %d", c.RemotePort())
			return
		}
		defer s.busy.Store(false)

		in := newStdio()
		err = Pump(s.ctx, c, in, in)
		in.Close()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		errorMsg("connection from port %d: %v\n", c.RemotePort(), err)
		return
	}
	infoMsg("Connection from port %d finished\n", c.RemotePort())
}

// startListener starts l and waits for the first report. Any error stops
// the listener.
func startListener(ctx context.Context, l *socket.Listener) error {
	result := make(chan *socket.ClassifiedError, 1)
	l.Start(func(_ *socket.Listener, err *socket.ClassifiedError) {
		select {
		case result <- err:
		default:
		}
	})

	select {
	case err := <-result:
		if err != nil {
			stopListener(l)
			return err
		}
		return nil
	case <-ctx.Done():
		stopListener(l)
		return ctx.Err()
	}
}

func stopListener(l *socket.Listener) {
	done := make(chan struct{})
	l.StopListeningForInboundConnections(func() { close(done) })
	<-done
}

func runListen(ctx context.Context, cfg Config, logger socklog.Logger) error {
	lcfg := socket.ListenerConfig{
		Host:    cfg.Host,
		Port:    cfg.Port,
		Backlog: cfg.Backlog,
		Logger:  logger,
	}
	if cfg.TLS {
		tlsCfg, err := serverTLS(cfg)
		if err != nil {
			return err
		}
		lcfg.TLS = tlsCfg
		lcfg.HandshakeTimeout = cfg.Timeout
	}

	l, err := socket.NewListener(lcfg)
	if err != nil {
		return err
	}

	srv := &server{ctx: ctx, echo: cfg.Echo, closeTimeout: cfg.CloseTimeout}
	l.AssignAcceptedCallbackListener(srv.accept)

	if err := startListener(ctx, l); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	}
	infoMsg("Listening on port %d\n", l.Port())

	if cfg.Advertise != "" {
		adv := discovery.NewAdvertiser(discovery.DefaultAdvertiserConfig())
		role := "pipe"
		if cfg.Echo {
			role = "echo"
		}
		info := &discovery.ServiceInfo{Instance: cfg.Advertise, Port: l.Port(), TLS: cfg.TLS, Role: role}
		if err := adv.Advertise(info); err != nil {
			log.Printf("Advertise failed: %v", err)
		} else {
			infoMsg("Advertising %s.%s%s\n", cfg.Advertise, discovery.ServiceType, "."+discovery.Domain)
			defer adv.StopAll()
		}
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	stopListener(l)
	srv.sessions.Wait()
	return nil
}
