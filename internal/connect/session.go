package connect

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/zumanm1/netaudit/pkg/models"
)

// State tracks the session lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

// promptPattern matches a device CLI prompt as the last line of output.
// Covers plain IOS/IOS-XE prompts ("R1#", "R1>") and the IOS-XR RP-qualified
// form ("RP/0/RSP0/CPU0:PE1#").
var promptPattern = regexp.MustCompile(`^(RP/\d+/(?:RSP)?\d+/CPU\d+:)?[\w.\-]+[#>][ \t]*$`)

// Session is an authenticated interactive shell to one device, tunneled
// through the jump host. A session is lent to exactly one worker at a time;
// the mutex only guards state transitions.
type Session struct {
	id     string
	device *models.DeviceRecord
	logger *zap.Logger

	stdin      io.Writer
	stdout     io.Reader
	closers    []io.Closer
	cmdTimeout time.Duration

	mu    sync.Mutex
	state State
}

// newShellSession opens an interactive PTY shell on an established device
// client, disables output paging, and waits for a command prompt to confirm
// the device is ready. On any failure every opened resource is closed before
// returning.
func newShellSession(ctx context.Context, device *models.DeviceRecord, client *ssh.Client, cmdTimeout time.Duration, logger *zap.Logger) (*Session, error) {
	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, Classify("open session", device.Hostname, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("vt100", 80, 512, modes); err != nil {
		sess.Close()
		client.Close()
		return nil, Classify("request pty", device.Hostname, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, Classify("stdin pipe", device.Hostname, err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, Classify("stdout pipe", device.Hostname, err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, Classify("start shell", device.Hostname, err)
	}

	s := &Session{
		id:         uuid.New().String(),
		device:     device,
		logger:     logger,
		stdin:      stdin,
		stdout:     stdout,
		closers:    []io.Closer{sess, client},
		cmdTimeout: cmdTimeout,
		state:      StateConnecting,
	}

	if err := s.verifyPrompt(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.setState(StateReady)
	return s, nil
}

// verifyPrompt drains the login banner, disables paging, and waits for the
// command prompt. Readiness is confirmed only once the prompt appears.
func (s *Session) verifyPrompt(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cmdTimeout)
	defer cancel()

	// Banner and initial prompt.
	if _, err := s.readUntilPrompt(ctx); err != nil {
		return &Error{Kind: KindTransport, Op: "await prompt", Host: s.device.Hostname, Err: err}
	}

	// Paging off; accepted by IOS, IOS-XE, and IOS-XR alike.
	if _, err := fmt.Fprintf(s.stdin, "terminal length 0\n"); err != nil {
		return Classify("disable paging", s.device.Hostname, err)
	}
	if _, err := s.readUntilPrompt(ctx); err != nil {
		return &Error{Kind: KindTransport, Op: "verify prompt", Host: s.device.Hostname, Err: err}
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Device returns the device this session is connected to.
func (s *Session) Device() *models.DeviceRecord { return s.device }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run executes one command and returns its cleaned output. Exceeding the
// per-command timeout aborts the command, transitions the session to Failed,
// and returns a command-kind error.
func (s *Session) Run(ctx context.Context, cmd string) (string, error) {
	if st := s.State(); st != StateReady {
		return "", &Error{Kind: KindCommand, Op: "run", Host: s.device.Hostname,
			Err: fmt.Errorf("session not ready (state %s)", st)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cmdTimeout)
	defer cancel()

	if _, err := fmt.Fprintf(s.stdin, "%s\n", cmd); err != nil {
		s.fail()
		return "", &Error{Kind: KindCommand, Op: "write command", Host: s.device.Hostname, Err: err}
	}

	raw, err := s.readUntilPrompt(ctx)
	if err != nil {
		s.fail()
		return "", &Error{Kind: KindCommand, Op: "read output", Host: s.device.Hostname, Err: err}
	}

	return cleanOutput(cmd, raw), nil
}

// readUntilPrompt accumulates shell output until a prompt line terminates
// it or the context expires. The read goroutine exits on its own once the
// session is closed, since closing unblocks the underlying channel read.
func (s *Session) readUntilPrompt(ctx context.Context) (string, error) {
	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)

	go func() {
		var b strings.Builder
		buf := make([]byte, 4096)
		for {
			n, err := s.stdout.Read(buf)
			if n > 0 {
				b.Write(buf[:n])
				if endsWithPrompt(b.String()) {
					ch <- result{out: b.String()}
					return
				}
			}
			if err != nil {
				ch <- result{out: b.String(), err: err}
				return
			}
		}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// fail marks the session unusable and releases its resources.
func (s *Session) fail() {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()
	s.closeResources()
}

// Close releases the device channel and the underlying tunnel. Safe to call
// more than once and on any state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if s.state != StateFailed {
		s.state = StateClosed
	}
	s.mu.Unlock()
	s.closeResources()
}

func (s *Session) closeResources() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil && s.logger != nil {
			s.logger.Debug("session close", zap.String("device", s.device.Hostname), zap.Error(err))
		}
	}
}

// endsWithPrompt reports whether the last line of buffered output is a
// device prompt.
func endsWithPrompt(out string) bool {
	out = strings.ReplaceAll(out, "\r", "")
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return promptPattern.MatchString(line)
	}
	return false
}

// cleanOutput strips the echoed command, trailing prompt line, and carriage
// returns from a raw command transcript.
func cleanOutput(cmd, raw string) string {
	raw = strings.ReplaceAll(raw, "\r", "")
	lines := strings.Split(raw, "\n")

	var clean []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" && len(clean) == 0 {
			continue
		}
		// Command echo, possibly prefixed by the prompt.
		if strings.HasSuffix(trimmed, cmd) && (trimmed == cmd || promptPattern.MatchString(strings.TrimSuffix(trimmed, cmd))) {
			continue
		}
		if promptPattern.MatchString(trimmed) {
			continue
		}
		clean = append(clean, line)
	}

	return strings.TrimSpace(strings.Join(clean, "\n"))
}
