package main

import (
	"os"

	"github.com/muesli/cancelreader"
)

// stdio joins stdin and stdout. Reads from stdin can be interrupted by
// Close where the platform allows it.
type stdio struct {
	cancellable cancelreader.CancelReader
}

func newStdio() *stdio {
	s := &stdio{}
	if r, err := cancelreader.NewReader(os.Stdin); err == nil {
		s.cancellable = r
	}
	return s
}

func (s *stdio) Read(p []byte) (int, error) {
	if s.cancellable != nil {
		return s.cancellable.Read(p)
	}
	return os.Stdin.Read(p)
}

func (s *stdio) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

// Close cancels a pending stdin read.
func (s *stdio) Close() error {
	if s.cancellable != nil {
		s.cancellable.Cancel()
	}
	return nil
}
