// Command sockcat is a netcat-style tool built on the socket package.
//
// It connects to a remote host and pipes stdin/stdout over the connection,
// listens for inbound connections and echoes or pipes them, probes whether
// a local port is free, or opens an interactive shell for driving a
// connection by hand.
//
// Usage:
//
//	sockcat [flags] [host port]
//
// Flags:
//
//	-listen             Listen for inbound connections instead of connecting
//	-host string        Bind address in listen mode (default all interfaces)
//	-port int           Port to listen on; -1 selects an ephemeral port
//	-echo               Echo accepted data back instead of piping to stdout
//	-tls                Use TLS (self-signed certificate when listening)
//	-cert, -key file    PEM certificate and key for -listen -tls
//	-timeout duration   Connect timeout (default 10s)
//	-close-timeout dur  Graceful close bound before reset (default 5s)
//	-backlog int        Max accepted connections still negotiating (0 = unlimited)
//	-advertise string   Advertise the listener over mDNS under this name
//	-protocol-log file  Write a capture of socket events to file
//	-probe int          Report whether a local port can be bound, then exit
//	-browse duration    List advertised listeners for this long, then exit
//	-interactive        Start the interactive shell
//	-config string      YAML configuration file
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Connect and pipe stdin/stdout
//	sockcat example.com 80
//
//	# Echo server on an ephemeral port, advertised on the LAN
//	sockcat -listen -echo -advertise bench
//
//	# Find listeners advertised on the LAN
//	sockcat -browse 5s
//
//	# Check whether port 8080 is free
//	sockcat -probe 8080
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	socklog "github.com/sockwrap/sockwrap-go/pkg/log"
	"github.com/sockwrap/sockwrap-go/pkg/socket"
)

var (
	config     = DefaultConfig()
	configFile string
)

func init() {
	flag.BoolVar(&config.Listen, "listen", config.Listen, "Listen for inbound connections instead of connecting")
	flag.StringVar(&config.Host, "host", config.Host, "Bind address in listen mode")
	flag.IntVar(&config.Port, "port", config.Port, "Port to listen on; -1 selects an ephemeral port")
	flag.BoolVar(&config.Echo, "echo", config.Echo, "Echo accepted data back instead of piping to stdout")
	flag.BoolVar(&config.TLS, "tls", config.TLS, "Use TLS")
	flag.StringVar(&config.CertFile, "cert", config.CertFile, "PEM certificate for -listen -tls")
	flag.StringVar(&config.KeyFile, "key", config.KeyFile, "PEM key for -listen -tls")
	flag.DurationVar(&config.Timeout, "timeout", config.Timeout, "Connect timeout")
	flag.DurationVar(&config.CloseTimeout, "close-timeout", config.CloseTimeout, "Graceful close bound before reset")
	flag.IntVar(&config.Backlog, "backlog", config.Backlog, "Max accepted connections still negotiating (0 = unlimited)")
	flag.StringVar(&config.Advertise, "advertise", config.Advertise, "Advertise the listener over mDNS under this name")
	flag.StringVar(&config.ProtocolLog, "protocol-log", config.ProtocolLog, "Write a capture of socket events to file")
	flag.IntVar(&config.Probe, "probe", config.Probe, "Report whether a local port can be bound, then exit")
	flag.DurationVar(&config.Browse, "browse", config.Browse, "List advertised listeners for this long, then exit")
	flag.BoolVar(&config.Interactive, "interactive", config.Interactive, "Start the interactive shell")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
}

func main() {
	flag.Parse()

	if configFile != "" {
		fileCfg, err := LoadConfigFile(configFile)
		if err != nil {
			errorMsg("%v\n", err)
			os.Exit(2)
		}
		config = MergeFlags(fileCfg, config, setFlags())
	}

	if flag.NArg() >= 1 {
		config.RemoteHost = flag.Arg(0)
	}
	if flag.NArg() >= 2 {
		p, err := strconv.ParseUint(flag.Arg(1), 10, 16)
		if err != nil {
			errorMsg("invalid port %q\n", flag.Arg(1))
			os.Exit(2)
		}
		config.RemotePort = uint16(p)
	}

	setupLogging(config.LogLevel)

	if err := config.Validate(); err != nil {
		errorMsg("%v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(config))
}

func run(cfg Config) int {
	if cfg.Probe >= 0 {
		return runProbe(cfg.Probe)
	}

	logger, closeLogger, err := protocolLogger(cfg)
	if err != nil {
		errorMsg("%v\n", err)
		return 1
	}
	defer closeLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case cfg.Browse > 0:
		err = browse(ctx, cfg.Browse, os.Stdout)
	case cfg.Interactive:
		err = runInteractive(ctx, cfg, logger)
	case cfg.Listen:
		err = runListen(ctx, cfg, logger)
	default:
		err = runClient(ctx, cfg, logger)
	}
	if err != nil {
		errorMsg("%v\n", err)
		return 1
	}
	return 0
}

func runProbe(port int) int {
	if socket.IsPortOpen(port) {
		infoMsg("port %d is free\n", port)
		return 0
	}
	errorMsg("port %d is in use or cannot be bound\n", port)
	return 1
}

// protocolLogger builds the capture logger for cfg. The returned func
// releases it.
func protocolLogger(cfg Config) (socklog.Logger, func(), error) {
	var loggers []socklog.Logger
	closeFn := func() {}

	if cfg.ProtocolLog != "" {
		fl, err := socklog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = func() { fl.Close() }
		log.Printf("Protocol log: %s", cfg.ProtocolLog)
	}
	if cfg.LogLevel == "debug" {
		loggers = append(loggers, socklog.NewSlogAdapter(debugSlogger()))
	}

	switch len(loggers) {
	case 0:
		return socklog.NoopLogger{}, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return socklog.NewMultiLogger(loggers...), closeFn, nil
	}
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

// waitOrTimeout blocks until done is closed or d elapses.
func waitOrTimeout(done <-chan struct{}, d time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
