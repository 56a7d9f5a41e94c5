package log

import (
	"bytes"
	"testing"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(99).String(), "UNKNOWN"},
		{EntityConnection.String(), "CONNECTION"},
		{EntityListener.String(), "LISTENER"},
		{Entity(99).String(), "UNKNOWN"},
		{CategoryState.String(), "STATE"},
		{CategoryData.String(), "DATA"},
		{CategoryLifecycle.String(), "LIFECYCLE"},
		{CategoryError.String(), "ERROR"},
		{Category(99).String(), "UNKNOWN"},
		{RoleClient.String(), "CLIENT"},
		{RoleServer.String(), "SERVER"},
		{Role(99).String(), "UNKNOWN"},
		{ActionStart.String(), "START"},
		{ActionCloseTimeout.String(), "CLOSE_TIMEOUT"},
		{ActionStopListening.String(), "STOP_LISTENING"},
		{Action(99).String(), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewDataEventCopies(t *testing.T) {
	src := []byte("hello")
	ev := NewDataEvent(src, false)
	src[0] = 'j'

	if ev.Size != 5 {
		t.Errorf("Size: got %d, want 5", ev.Size)
	}
	if string(ev.Data) != "hello" {
		t.Errorf("Data: got %q, want %q", ev.Data, "hello")
	}
	if ev.Truncated {
		t.Error("Truncated should be false")
	}
}

func TestNewDataEventTruncates(t *testing.T) {
	src := bytes.Repeat([]byte{0xAB}, MaxCapturedData+10)
	ev := NewDataEvent(src, true)

	if ev.Size != len(src) {
		t.Errorf("Size: got %d, want %d", ev.Size, len(src))
	}
	if len(ev.Data) != MaxCapturedData {
		t.Errorf("len(Data): got %d, want %d", len(ev.Data), MaxCapturedData)
	}
	if !ev.Truncated {
		t.Error("Truncated should be true")
	}
	if !ev.EndOfStream {
		t.Error("EndOfStream should be true")
	}
}

func TestNewDataEventEmpty(t *testing.T) {
	ev := NewDataEvent(nil, true)
	if ev.Size != 0 || ev.Data != nil {
		t.Errorf("got %+v, want empty", ev)
	}
}
