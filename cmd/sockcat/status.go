package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
)

var (
	red  = color.New(color.FgRed).FprintfFunc()
	blue = color.New(color.FgBlue).FprintfFunc()
)

// statusOut is where status lines go. The interactive shell swaps it for
// the readline writer.
var statusOut io.Writer = os.Stderr

// errorMsg prints an error line in red.
func errorMsg(format string, a ...any) {
	red(statusOut, "[!] Error: "+format, a...)
}

// infoMsg prints a status line in blue.
func infoMsg(format string, a ...any) {
	blue(statusOut, "[+] "+format, a...)
}

func debugSlogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
