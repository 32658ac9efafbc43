package connect

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zumanm1/netaudit/internal/config"
	"github.com/zumanm1/netaudit/pkg/models"
)

type fakeTransport struct{ closed atomic.Bool }

func (f *fakeTransport) Dial(network, addr string) (net.Conn, error) {
	return nil, errors.New("fakeTransport.Dial should not be reached in these tests")
}
func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JumpHost:       config.JumpHost{Address: "bastion", Username: "root", Password: "pw"},
		Workers:        4,
		Attempts:       3,
		Backoff:        time.Millisecond,
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
	}
}

func testDevice() *models.DeviceRecord {
	return &models.DeviceRecord{Hostname: "R1", Address: "172.16.39.2", Username: "cisco", Password: "cisco"}
}

// newTestManager wires a manager with a scripted device opener. openResults
// is consumed one element per openDevice call; a nil element yields a Ready
// session.
func newTestManager(t *testing.T, openResults []error) (*Manager, *int, *[]bool) {
	t.Helper()
	m := NewManager(testConfig(), zap.NewNop())

	calls := 0
	var legacyFlags []bool
	m.dialJump = func(ctx context.Context) (Transport, error) {
		return &fakeTransport{}, nil
	}
	m.openDevice = func(_ context.Context, _ Transport, device *models.DeviceRecord, legacy bool) (*Session, error) {
		if calls >= len(openResults) {
			t.Fatalf("openDevice called %d times, scripted for %d", calls+1, len(openResults))
		}
		err := openResults[calls]
		calls++
		legacyFlags = append(legacyFlags, legacy)
		if err != nil {
			return nil, err
		}
		return readySession(device.Hostname), nil
	}
	return m, &calls, &legacyFlags
}

func TestAcquire_Succeeds(t *testing.T) {
	m, calls, _ := newTestManager(t, []error{nil})

	s, err := m.Acquire(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("State = %v, want ready", s.State())
	}
	if *calls != 1 {
		t.Errorf("openDevice calls = %d, want 1", *calls)
	}
}

func TestAcquire_TransportRetriedUpToAttempts(t *testing.T) {
	transportErr := &Error{Kind: KindTransport, Op: "dial", Host: "R1", Err: errors.New("i/o timeout")}
	m, calls, _ := newTestManager(t, []error{transportErr, transportErr, nil})

	s, err := m.Acquire(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s == nil || *calls != 3 {
		t.Errorf("openDevice calls = %d, want 3", *calls)
	}
}

func TestAcquire_TransportExhaustsAttempts(t *testing.T) {
	transportErr := &Error{Kind: KindTransport, Op: "dial", Host: "R1", Err: errors.New("i/o timeout")}
	m, calls, _ := newTestManager(t, []error{transportErr, transportErr, transportErr})

	_, err := m.Acquire(context.Background(), testDevice())
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if *calls != 3 {
		t.Errorf("openDevice calls = %d, want exactly Attempts=3", *calls)
	}
	if KindOf(err) != KindTransport {
		t.Errorf("KindOf = %v, want transport", KindOf(err))
	}
}

func TestAcquire_AuthNotRetried(t *testing.T) {
	authErr := &Error{Kind: KindAuth, Op: "handshake", Host: "R1", Err: errors.New("unable to authenticate")}
	m, calls, _ := newTestManager(t, []error{authErr})

	_, err := m.Acquire(context.Background(), testDevice())
	if err == nil {
		t.Fatal("expected auth error")
	}
	if *calls != 1 {
		t.Errorf("openDevice calls = %d, want 1 (no retry on auth)", *calls)
	}
}

func TestAcquire_ProtocolFallbackOnce(t *testing.T) {
	protoErr := &Error{Kind: KindProtocol, Op: "handshake", Host: "R1", Err: errors.New("no common algorithm")}

	t.Run("fallback succeeds", func(t *testing.T) {
		m, calls, legacy := newTestManager(t, []error{protoErr, nil})

		s, err := m.Acquire(context.Background(), testDevice())
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if s == nil || *calls != 2 {
			t.Fatalf("openDevice calls = %d, want 2", *calls)
		}
		if (*legacy)[0] || !(*legacy)[1] {
			t.Errorf("legacy flags = %v, want [false true]", *legacy)
		}
	})

	t.Run("fallback fails is fatal", func(t *testing.T) {
		m, calls, _ := newTestManager(t, []error{protoErr, protoErr})

		_, err := m.Acquire(context.Background(), testDevice())
		if err == nil {
			t.Fatal("expected error")
		}
		if *calls != 2 {
			t.Errorf("openDevice calls = %d, want exactly 2 (one fallback)", *calls)
		}
		if KindOf(err) != KindProtocol {
			t.Errorf("KindOf = %v, want protocol", KindOf(err))
		}
	})
}

func TestAcquire_JumpFailureIsFatalAndSticky(t *testing.T) {
	m := NewManager(testConfig(), zap.NewNop())

	dials := 0
	m.dialJump = func(ctx context.Context) (Transport, error) {
		dials++
		return nil, errors.New("connection refused")
	}

	_, err := m.Acquire(context.Background(), testDevice())
	if !errors.Is(err, ErrJumpHostDown) {
		t.Fatalf("err = %v, want ErrJumpHostDown", err)
	}

	// Second acquire must not re-dial: the failure is sticky for the run.
	_, err = m.Acquire(context.Background(), testDevice())
	if !errors.Is(err, ErrJumpHostDown) {
		t.Fatalf("second err = %v, want ErrJumpHostDown", err)
	}
	if dials != 1 {
		t.Errorf("jump dials = %d, want 1", dials)
	}
}

func TestAcquire_CancelledJumpDialNotSticky(t *testing.T) {
	m := NewManager(testConfig(), zap.NewNop())

	dials := 0
	m.dialJump = func(ctx context.Context) (Transport, error) {
		dials++
		if dials == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &fakeTransport{}, nil
	}
	m.openDevice = func(_ context.Context, _ Transport, device *models.DeviceRecord, _ bool) (*Session, error) {
		return readySession(device.Hostname), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Acquire(ctx, testDevice())
	if err == nil {
		t.Fatal("expected error from cancelled dial")
	}
	if errors.Is(err, ErrJumpHostDown) {
		t.Fatalf("err = %v, must not be ErrJumpHostDown", err)
	}

	// The caller's cancellation must not condemn the jump host: a later
	// Acquire with a live context dials again and succeeds.
	if _, err := m.Acquire(context.Background(), testDevice()); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if dials != 2 {
		t.Errorf("jump dials = %d, want 2", dials)
	}
}

func TestAcquire_JumpDialSingleFlight(t *testing.T) {
	m := NewManager(testConfig(), zap.NewNop())

	var dials atomic.Int32
	m.dialJump = func(ctx context.Context) (Transport, error) {
		dials.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &fakeTransport{}, nil
	}
	m.openDevice = func(_ context.Context, _ Transport, device *models.DeviceRecord, _ bool) (*Session, error) {
		return readySession(device.Hostname), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire(context.Background(), testDevice()); err != nil {
				t.Errorf("Acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := dials.Load(); got != 1 {
		t.Errorf("jump dials = %d, want 1 (single-flight)", got)
	}
}

func TestRelease_PoolsReadyDiscardsFailed(t *testing.T) {
	m, _, _ := newTestManager(t, []error{nil})

	s, err := m.Acquire(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	m.Release(s)
	if m.pool.Size() != 1 {
		t.Fatalf("pool size = %d after releasing ready session, want 1", m.pool.Size())
	}

	// Next acquire reuses the pooled session without opening a new one.
	again, err := m.Acquire(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if again != s {
		t.Error("pooled session not reused")
	}

	again.fail()
	m.Release(again)
	if m.pool.Size() != 0 {
		t.Errorf("pool size = %d after releasing failed session, want 0", m.pool.Size())
	}
}

func TestClose_TearsDownJump(t *testing.T) {
	m := NewManager(testConfig(), zap.NewNop())
	ft := &fakeTransport{}
	m.dialJump = func(ctx context.Context) (Transport, error) { return ft, nil }
	m.openDevice = func(_ context.Context, _ Transport, device *models.DeviceRecord, _ bool) (*Session, error) {
		return readySession(device.Hostname), nil
	}

	s, err := m.Acquire(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	m.Release(s)

	m.Close()
	if !ft.closed.Load() {
		t.Error("jump transport not closed")
	}
	if s.State() != StateClosed {
		t.Error("pooled session not closed")
	}
}
