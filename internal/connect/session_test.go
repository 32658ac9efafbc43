package connect

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zumanm1/netaudit/pkg/models"
)

// fakeDevice scripts an interactive CLI endpoint behind io.Pipes: each
// received line is answered from the responses map, terminated by the
// prompt.
type fakeDevice struct {
	prompt    string
	responses map[string]string
}

func (f *fakeDevice) serve(t *testing.T, in io.Reader, out io.WriteCloser) {
	t.Helper()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		resp := f.responses[cmd]
		if _, err := io.WriteString(out, cmd+"\n"+resp+"\n"+f.prompt+"\n"); err != nil {
			return
		}
	}
}

func newTestSession(t *testing.T, dev *fakeDevice, timeout time.Duration) *Session {
	t.Helper()
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	go dev.serve(t, stdinR, stdoutW)

	s := &Session{
		id:         "test",
		device:     &models.DeviceRecord{Hostname: "R1", Address: "10.0.0.1"},
		logger:     zap.NewNop(),
		stdin:      stdinW,
		stdout:     stdoutR,
		closers:    []io.Closer{stdinW, stdoutR},
		cmdTimeout: timeout,
		state:      StateReady,
	}
	t.Cleanup(s.Close)
	return s
}

func TestSessionRun_ReturnsCleanedOutput(t *testing.T) {
	dev := &fakeDevice{
		prompt: "R1#",
		responses: map[string]string{
			"show ip interface brief": "Interface    IP-Address   Status\nGi0/0        10.0.0.1     up",
		},
	}
	s := newTestSession(t, dev, 2*time.Second)

	out, err := s.Run(context.Background(), "show ip interface brief")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(out, "R1#") {
		t.Errorf("prompt not stripped: %q", out)
	}
	if strings.Contains(out, "show ip interface brief") {
		t.Errorf("command echo not stripped: %q", out)
	}
	if !strings.Contains(out, "Gi0/0") {
		t.Errorf("output body missing: %q", out)
	}
}

func TestSessionRun_TimeoutFailsSession(t *testing.T) {
	// A device that never answers.
	stdinR, stdinW := io.Pipe()
	stdoutR, _ := io.Pipe()
	go func() { _, _ = io.Copy(io.Discard, stdinR) }()

	s := &Session{
		id:         "test",
		device:     &models.DeviceRecord{Hostname: "R1"},
		logger:     zap.NewNop(),
		stdin:      stdinW,
		stdout:     stdoutR,
		cmdTimeout: 50 * time.Millisecond,
		state:      StateReady,
	}

	_, err := s.Run(context.Background(), "show version")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if KindOf(err) != KindCommand {
		t.Errorf("KindOf = %v, want command", KindOf(err))
	}
	if s.State() != StateFailed {
		t.Errorf("State = %v, want failed after timeout", s.State())
	}
}

func TestSessionRun_NotReady(t *testing.T) {
	s := &Session{device: &models.DeviceRecord{Hostname: "R1"}, state: StateClosed}
	if _, err := s.Run(context.Background(), "show version"); err == nil {
		t.Fatal("expected error for closed session")
	}
}

func TestSessionClose_Idempotent(t *testing.T) {
	s := &Session{device: &models.DeviceRecord{Hostname: "R1"}, state: StateReady}
	s.Close()
	s.Close()
	if s.State() != StateClosed {
		t.Errorf("State = %v, want closed", s.State())
	}
}

func TestSessionFail_PreservedByClose(t *testing.T) {
	s := &Session{device: &models.DeviceRecord{Hostname: "R1"}, state: StateReady}
	s.fail()
	s.Close()
	if s.State() != StateFailed {
		t.Errorf("State = %v, want failed preserved across Close", s.State())
	}
}

func TestEndsWithPrompt(t *testing.T) {
	tests := []struct {
		out  string
		want bool
	}{
		{"Interface up\nR1#", true},
		{"Interface up\nR1# ", true},
		{"R1>", true},
		{"RP/0/RSP0/CPU0:PE1#", true},
		{"RP/0/0/CPU0:core-rtr1#\n", true},
		{"Interface up\npartial lin", false},
		{"", false},
		{"all interfaces are up", false},
	}
	for _, tt := range tests {
		if got := endsWithPrompt(tt.out); got != tt.want {
			t.Errorf("endsWithPrompt(%q) = %v, want %v", tt.out, got, tt.want)
		}
	}
}

func TestCleanOutput(t *testing.T) {
	raw := "show version\r\nCisco IOS Software, Version 15.2\r\nuptime is 1 week\r\nR1#"
	got := cleanOutput("show version", raw)
	want := "Cisco IOS Software, Version 15.2\nuptime is 1 week"
	if got != want {
		t.Errorf("cleanOutput = %q, want %q", got, want)
	}
}

func TestCleanOutput_PromptPrefixedEcho(t *testing.T) {
	raw := "R1#show clock\n10:04:01.123 UTC\nR1#"
	got := cleanOutput("show clock", raw)
	if got != "10:04:01.123 UTC" {
		t.Errorf("cleanOutput = %q", got)
	}
}

func TestSessionRun_WriteErrorIsCommandKind(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	_ = stdinR.CloseWithError(errors.New("gone"))
	stdoutR, _ := io.Pipe()

	s := &Session{
		id:         "test",
		device:     &models.DeviceRecord{Hostname: "R1"},
		logger:     zap.NewNop(),
		stdin:      stdinW,
		stdout:     stdoutR,
		cmdTimeout: time.Second,
		state:      StateReady,
	}
	_, err := s.Run(context.Background(), "show version")
	if err == nil {
		t.Fatal("expected write error")
	}
	if KindOf(err) != KindCommand {
		t.Errorf("KindOf = %v, want command", KindOf(err))
	}
}
