package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sockwrap/sockwrap-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.scap")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close test log: %v", err)
	}
	return path
}

// sessionEvents is a short client session: start, ready, one write, one
// read at end of stream, and a refused reconnect.
func sessionEvents(base time.Time) []log.Event {
	code := 111
	return []log.Event{
		{
			Timestamp: base, ConnectionID: "11111111-aaaa", Entity: log.EntityConnection,
			Category: log.CategoryLifecycle, RemoteAddr: "127.0.0.1:7000",
			Lifecycle: &log.LifecycleEvent{Action: log.ActionStart},
		},
		{
			Timestamp: base.Add(10 * time.Millisecond), ConnectionID: "11111111-aaaa", Entity: log.EntityConnection,
			Category: log.CategoryState, LocalAddr: "127.0.0.1:50000", RemoteAddr: "127.0.0.1:7000",
			StateChange: &log.StateChangeEvent{OldState: "preparing", NewState: "ready"},
		},
		{
			Timestamp: base.Add(20 * time.Millisecond), ConnectionID: "11111111-aaaa", Entity: log.EntityConnection,
			Category: log.CategoryData, Direction: log.DirectionOut,
			Data: log.NewDataEvent([]byte("ping"), false),
		},
		{
			Timestamp: base.Add(30 * time.Millisecond), ConnectionID: "11111111-aaaa", Entity: log.EntityConnection,
			Category: log.CategoryData, Direction: log.DirectionIn,
			Data: log.NewDataEvent([]byte("pong!"), true),
		},
		{
			Timestamp: base.Add(2 * time.Second), ConnectionID: "22222222-bbbb", Entity: log.EntityConnection,
			Category: log.CategoryError, RemoteAddr: "127.0.0.1:7001",
			Error: &log.ErrorEventData{Kind: "transport", Message: "connection refused", Code: &code, Context: "failed"},
		},
		{
			Timestamp: base.Add(3 * time.Second), ConnectionID: "33333333-cccc", Entity: log.EntityListener,
			Category: log.CategoryLifecycle, Role: log.RoleServer, LocalAddr: ":9000",
			Lifecycle: &log.LifecycleEvent{Action: log.ActionAccept, Detail: "127.0.0.1:50001"},
		},
	}
}
