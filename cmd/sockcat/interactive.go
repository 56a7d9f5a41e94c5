package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/sockwrap/sockwrap-go/pkg/discovery"
	socklog "github.com/sockwrap/sockwrap-go/pkg/log"
	"github.com/sockwrap/sockwrap-go/pkg/socket"
)

// readTimeout bounds how long the read command waits for data.
const readTimeout = 5 * time.Second

// shell drives a single connection from typed commands.
type shell struct {
	cfg    Config
	logger socklog.Logger
	out    io.Writer

	mu   sync.Mutex
	conn *socket.Connection
}

func newShell(cfg Config, logger socklog.Logger, out io.Writer) *shell {
	return &shell{cfg: cfg, logger: logger, out: out}
}

func runInteractive(ctx context.Context, cfg Config, logger socklog.Logger) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sockcat> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Keep asynchronous output from tearing the prompt.
	log.SetOutput(rl.Stderr())
	statusOut = rl.Stderr()

	sh := newShell(cfg, logger, rl.Stdout())
	defer sh.closeCurrent()

	sh.printHelp()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil
		}

		if sh.exec(ctx, line) {
			return nil
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "connect", "c":
		s.cmdConnect(ctx, args)
	case "send", "s":
		s.cmdSend(line, args)
	case "read", "r":
		s.cmdRead()
	case "state":
		s.cmdState()
	case "close":
		s.cmdClose()
	case "reset":
		s.cmdReset()
	case "probe":
		s.cmdProbe(args)
	case "browse":
		s.cmdBrowse(ctx, args)
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  connect HOST PORT [tls]  Open a connection (replaces the current one)
  send TEXT                Send TEXT followed by a newline
  read                     Read the next chunk of data
  state                    Show the connection state and ports
  close                    Close gracefully
  reset                    Force cancel
  probe PORT               Check whether a local port can be bound
  browse [SECONDS]         List advertised listeners
  quit                     Exit
`)
}

func (s *shell) current() *socket.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *shell) closeCurrent() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()

	if c != nil {
		closeConn(c, s.cfg.CloseTimeout)
	}
}

func (s *shell) cmdConnect(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: connect HOST PORT [tls]")
		return
	}
	port, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil || port == 0 {
		fmt.Fprintf(s.out, "Invalid port: %s\n", args[1])
		return
	}
	useTLS := len(args) > 2 && strings.EqualFold(args[2], "tls")

	s.closeCurrent()

	c := socket.NewClientConnection(clientConfig(s.cfg, args[0], uint16(port), useTLS, s.logger))
	if err := dial(ctx, c); err != nil {
		fmt.Fprintf(s.out, "Connect failed: %v\n", err)
		c.ForceCancel()
		return
	}

	c.SubscribeToStateUpdates(func(_ *socket.Connection, state string, err *socket.ClassifiedError) {
		if err != nil {
			fmt.Fprintf(s.out, "[state] %s: %v\n", state, err)
			return
		}
		fmt.Fprintf(s.out, "[state] %s\n", state)
	})

	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()

	fmt.Fprintf(s.out, "Connected (local port %d, remote port %d)\n", c.LocalPort(), c.RemotePort())
}

// cmdSend sends the rest of the line after the command word verbatim.
func (s *shell) cmdSend(line string, args []string) {
	c := s.current()
	if c == nil {
		fmt.Fprintln(s.out, "Not connected")
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: send TEXT")
		return
	}

	text := strings.TrimSpace(line)
	text = strings.TrimSpace(text[strings.IndexAny(text, " \t"):])

	if err := writeSync(c, []byte(text+"\n")); err != nil {
		fmt.Fprintf(s.out, "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Sent %d bytes\n", len(text)+1)
}

func (s *shell) cmdRead() {
	c := s.current()
	if c == nil {
		fmt.Fprintln(s.out, "Not connected")
		return
	}

	type result struct {
		data       []byte
		err        error
		isComplete bool
	}
	res := make(chan result, 1)
	c.ReadData(func(data []byte, err error, isComplete bool) {
		res <- result{data, err, isComplete}
	})

	select {
	case r := <-res:
		if len(r.data) > 0 {
			fmt.Fprintf(s.out, "%q\n", r.data)
		}
		switch {
		case r.err != nil:
			fmt.Fprintf(s.out, "Read failed: %v\n", r.err)
		case r.isComplete:
			fmt.Fprintln(s.out, "(end of stream)")
		}
	case <-time.After(readTimeout):
		// The read stays queued; its data is lost once it arrives.
		fmt.Fprintln(s.out, "No data yet")
	}
}

func (s *shell) cmdState() {
	c := s.current()
	if c == nil {
		fmt.Fprintln(s.out, "Not connected")
		return
	}
	fmt.Fprintf(s.out, "State:       %s\n", c.CurrentState())
	fmt.Fprintf(s.out, "Local port:  %d\n", c.LocalPort())
	fmt.Fprintf(s.out, "Remote port: %d\n", c.RemotePort())
	if err := c.LastError(); err != nil {
		fmt.Fprintf(s.out, "Last error:  [%s] %s\n", err.Kind, err.Description)
	}
}

func (s *shell) cmdClose() {
	if s.current() == nil {
		fmt.Fprintln(s.out, "Not connected")
		return
	}
	s.closeCurrent()
	fmt.Fprintln(s.out, "Closed")
}

func (s *shell) cmdReset() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()

	if c == nil {
		fmt.Fprintln(s.out, "Not connected")
		return
	}
	c.ForceCancel()
	fmt.Fprintln(s.out, "Reset")
}

func (s *shell) cmdProbe(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: probe PORT")
		return
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid port: %s\n", args[0])
		return
	}
	if socket.IsPortOpen(port) {
		fmt.Fprintf(s.out, "Port %d is free\n", port)
	} else {
		fmt.Fprintf(s.out, "Port %d is in use or cannot be bound\n", port)
	}
}

func (s *shell) cmdBrowse(ctx context.Context, args []string) {
	d := 3 * time.Second
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			fmt.Fprintf(s.out, "Invalid duration: %s\n", args[0])
			return
		}
		d = time.Duration(secs) * time.Second
	}

	if err := browse(ctx, d, s.out); err != nil {
		fmt.Fprintf(s.out, "Browse failed: %v\n", err)
	}
}

// browse prints listeners advertised on the local network until d elapses.
func browse(ctx context.Context, d time.Duration, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	services, err := discovery.Browse(ctx, "")
	if err != nil {
		return err
	}

	found := 0
	for svc := range services {
		found++
		tls := "plain"
		if svc.TLS {
			tls = "tls"
		}
		fmt.Fprintf(out, "%-24s %s:%d %s %s %v\n", svc.Instance, svc.Host, svc.Port, tls, svc.Role, svc.Addresses)
	}
	if found == 0 {
		fmt.Fprintln(out, "No listeners found")
	}
	return nil
}
