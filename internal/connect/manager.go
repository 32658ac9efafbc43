package connect

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/zumanm1/netaudit/internal/config"
	"github.com/zumanm1/netaudit/pkg/models"
)

// legacyKeyExchanges and legacyCiphers extend the default algorithm set for
// the one-shot protocol fallback against devices that only offer older
// key exchanges and CBC ciphers.
var (
	legacyKeyExchanges = []string{
		"diffie-hellman-group1-sha1",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group-exchange-sha1",
	}
	legacyCiphers = []string{
		"aes128-ctr", "aes192-ctr", "aes256-ctr",
		"aes128-cbc", "aes256-cbc", "3des-cbc",
	}
)

// Transport is the jump-host side of the tunnel: it opens forwarded TCP
// connections to devices. *ssh.Client satisfies it.
type Transport interface {
	Dial(network, addr string) (net.Conn, error)
	Close() error
}

// Manager owns the shared jump-host transport and hands out authenticated
// device sessions tunneled through it.
type Manager struct {
	cfg    *config.Config
	pool   *Pool
	logger *zap.Logger

	limiter *rate.Limiter
	flight  singleflight.Group

	mu      sync.Mutex
	jump    Transport
	jumpErr error // sticky: jump-host failure is fatal for the run

	// dialJump establishes the jump-host transport; openDevice opens and
	// authenticates one device session over it. Default to the real SSH
	// implementations; overridden in tests.
	dialJump   func(ctx context.Context) (Transport, error)
	openDevice func(ctx context.Context, jump Transport, device *models.DeviceRecord, legacy bool) (*Session, error)
}

// NewManager creates a connection manager. The jump-host transport is not
// dialed until the first Acquire.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		pool:   NewPool(cfg.Workers),
		logger: logger,
	}
	if cfg.ChannelRate > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.ChannelRate), 1)
	}
	m.dialJump = m.realDialJump
	m.openDevice = m.realOpenDevice
	return m
}

// ensureJump establishes the jump-host transport on first use. Exactly one
// caller performs the dial and authentication; concurrent callers wait on
// the same flight. Failure is sticky: once the jump host is down the whole
// run is down. A dial cut short by the caller's context is not latched, so
// a later Acquire may still reach the host.
func (m *Manager) ensureJump(ctx context.Context) (Transport, error) {
	m.mu.Lock()
	if m.jump != nil {
		t := m.jump
		m.mu.Unlock()
		return t, nil
	}
	if m.jumpErr != nil {
		err := m.jumpErr
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrJumpHostDown, err)
	}
	m.mu.Unlock()

	v, err, _ := m.flight.Do("jump", func() (any, error) {
		t, dialErr := m.dialJump(ctx)
		m.mu.Lock()
		defer m.mu.Unlock()
		if dialErr != nil {
			// A dial aborted by the caller's own deadline says nothing
			// about the jump host; only a genuine dial failure is sticky.
			if ctx.Err() == nil {
				m.jumpErr = dialErr
			}
			return nil, dialErr
		}
		m.jump = t
		return t, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("dial jump host: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrJumpHostDown, err)
	}
	return v.(Transport), nil
}

func (m *Manager) realDialJump(ctx context.Context) (Transport, error) {
	jh := m.cfg.JumpHost
	sshCfg := &ssh.ClientConfig{
		User: jh.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(jh.Password),
			ssh.KeyboardInteractive(passwordResponder(jh.Password)),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // lab/bastion environments rely on password auth without host pinning
		Timeout:         m.cfg.ConnectTimeout,
	}

	m.logger.Info("establishing jump host transport", zap.String("addr", jh.Addr()))
	client, err := ssh.Dial("tcp", jh.Addr(), sshCfg)
	if err != nil {
		return nil, Classify("dial jump host", jh.Address, err)
	}
	return client, nil
}

// passwordResponder answers keyboard-interactive challenges with the
// configured password; some bastions only advertise that method.
func passwordResponder(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	}
}

// Acquire returns a Ready session for the device: a pooled one when
// available, otherwise a fresh tunnel through the jump transport. Transport
// failures are retried with backoff up to the attempt cap, auth failures
// fail immediately, and protocol failures get exactly one legacy-algorithm
// fallback.
func (m *Manager) Acquire(ctx context.Context, device *models.DeviceRecord) (*Session, error) {
	if s := m.pool.Get(device.Hostname); s != nil {
		m.logger.Debug("reusing pooled session",
			zap.String("device", device.Hostname),
			zap.String("session_id", s.ID()))
		return s, nil
	}

	jump, err := m.ensureJump(ctx)
	if err != nil {
		return nil, err
	}

	legacy := false
	fallbackUsed := false
	attempt := 1
	for {
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return nil, Classify("rate limit", device.Hostname, err)
			}
		}

		sess, openErr := m.openDevice(ctx, jump, device, legacy)
		if openErr == nil {
			m.logger.Debug("device session ready",
				zap.String("device", device.Hostname),
				zap.String("session_id", sess.ID()),
				zap.Bool("legacy_algorithms", legacy),
				zap.Int("attempt", attempt))
			return sess, nil
		}

		switch KindOf(openErr) {
		case KindAuth:
			m.logger.Warn("device authentication failed",
				zap.String("device", device.Hostname), zap.Error(openErr))
			return nil, openErr

		case KindProtocol:
			if fallbackUsed {
				return nil, openErr
			}
			// One fallback retry with the relaxed algorithm set; does not
			// consume a transport attempt.
			fallbackUsed = true
			legacy = true
			m.logger.Info("algorithm negotiation failed, retrying with legacy set",
				zap.String("device", device.Hostname))
			continue

		default:
			if attempt >= m.cfg.Attempts {
				return nil, openErr
			}
			attempt++
			m.logger.Debug("transport error, retrying",
				zap.String("device", device.Hostname),
				zap.Int("next_attempt", attempt),
				zap.Error(openErr))
			select {
			case <-ctx.Done():
				return nil, Classify("acquire", device.Hostname, ctx.Err())
			case <-time.After(m.cfg.Backoff):
			}
		}
	}
}

// realOpenDevice opens a forwarded channel to device:port over the jump
// transport, authenticates with device credentials, and verifies readiness.
// Every intermediate resource is closed on failure.
func (m *Manager) realOpenDevice(ctx context.Context, jump Transport, device *models.DeviceRecord, legacy bool) (*Session, error) {
	addr := net.JoinHostPort(device.Address, strconv.Itoa(device.SSHPort()))

	conn, err := jump.Dial("tcp", addr)
	if err != nil {
		return nil, Classify("open device channel", device.Hostname, err)
	}

	sshCfg := &ssh.ClientConfig{
		User: device.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(device.Password),
			ssh.KeyboardInteractive(passwordResponder(device.Password)),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // see realDialJump
		Timeout:         m.cfg.ConnectTimeout,
	}
	if legacy {
		sshCfg.Config = ssh.Config{
			KeyExchanges: legacyKeyExchanges,
			Ciphers:      legacyCiphers,
		}
	}

	// ClientConfig.Timeout does not cover the handshake on a pre-dialed
	// connection; bound it with a deadline.
	_ = conn.SetDeadline(time.Now().Add(m.cfg.ConnectTimeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		conn.Close()
		return nil, Classify("device handshake", device.Hostname, err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(c, chans, reqs)
	return newShellSession(ctx, device, client, m.cfg.CommandTimeout, m.logger)
}

// Release returns a Ready session to the pool for reuse within the run, or
// discards one that failed or was closed so the next Acquire starts fresh.
func (m *Manager) Release(s *Session) {
	if s == nil {
		return
	}
	if s.State() == StateReady {
		m.pool.Put(s)
		return
	}
	s.Close()
}

// CloseIdle force-closes pooled sessions without tearing down the jump
// transport. Used when the run deadline expires.
func (m *Manager) CloseIdle() {
	m.pool.CloseAll()
}

// Close drains the pool and tears down the jump-host transport.
func (m *Manager) Close() {
	m.pool.CloseAll()

	m.mu.Lock()
	jump := m.jump
	m.jump = nil
	m.mu.Unlock()

	if jump != nil {
		if err := jump.Close(); err != nil {
			m.logger.Debug("jump transport close", zap.Error(err))
		}
	}
}
