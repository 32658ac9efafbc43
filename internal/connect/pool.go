package connect

import "sync"

// Pool tracks idle Ready sessions within a run so a device's later layers
// can reuse an authenticated session instead of re-tunneling. Sessions in
// the pool are not held by any worker.
type Pool struct {
	mu       sync.Mutex
	idle     map[string][]*Session // hostname -> idle sessions
	capacity int
	total    int
}

// NewPool creates a pool holding at most capacity idle sessions.
func NewPool(capacity int) *Pool {
	return &Pool{
		idle:     make(map[string][]*Session),
		capacity: capacity,
	}
}

// Get pops an idle session for the given device, discarding any that are no
// longer Ready. Returns nil when none is available.
func (p *Pool) Get(hostname string) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		sessions := p.idle[hostname]
		if len(sessions) == 0 {
			return nil
		}
		s := sessions[len(sessions)-1]
		p.idle[hostname] = sessions[:len(sessions)-1]
		p.total--

		if s.State() == StateReady {
			return s
		}
		s.Close()
	}
}

// Put returns a session to the pool. Sessions that are not Ready, or that
// would exceed capacity, are closed instead.
func (p *Pool) Put(s *Session) {
	if s == nil {
		return
	}
	if s.State() != StateReady {
		s.Close()
		return
	}

	p.mu.Lock()
	if p.total >= p.capacity {
		p.mu.Unlock()
		s.Close()
		return
	}
	host := s.Device().Hostname
	p.idle[host] = append(p.idle[host], s)
	p.total++
	p.mu.Unlock()
}

// Size returns the number of idle sessions held.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// CloseAll force-closes every idle session. Used on run teardown and when
// the run deadline expires.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	sessions := make([]*Session, 0, p.total)
	for host, list := range p.idle {
		sessions = append(sessions, list...)
		delete(p.idle, host)
	}
	p.total = 0
	p.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
