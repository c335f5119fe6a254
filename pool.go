package kurir

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// dialContext returns a dialer bounding the connect phase independently of
// the read phase.
func dialContext(connectTimeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
}

// PooledSession is an open, reusable transport handle bound to one host. The
// pool owns it while idle; ownership transfers to the dispatching call for
// the duration of one send and returns on Release.
type PooledSession struct {
	host   string
	client *http.Client
}

// Do sends the request over the session's transport. Keep-alive and
// transparent gzip are handled by the transport itself.
func (s *PooledSession) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

// Close releases the session's idle transport connections.
func (s *PooledSession) Close() {
	s.client.CloseIdleConnections()
}

// ConnectionPool owns a bounded set of reusable sessions keyed by host.
// The number of sessions concurrently checked out plus idle for a host never
// exceeds maxPerHost. All state is guarded by one mutex; safe for arbitrary
// concurrent callers.
type ConnectionPool struct {
	mu         sync.Mutex
	maxPerHost int
	idle       map[string][]*PooledSession
	active     map[string]int

	// dial constructs a session for a host. Injectable so tests can simulate
	// creation failure; a failed dial surfaces as a nil Acquire result, never
	// as an error.
	dial func(host string) (*PooledSession, error)
}

// NewConnectionPool creates a pool allowing maxPerHost sessions per host.
// Opening a session performs no network I/O; connecting is lazy and
// delegated to the transport, bounded by the given connect and read
// timeouts.
func NewConnectionPool(maxPerHost int, connectTimeout, readTimeout time.Duration) *ConnectionPool {
	p := &ConnectionPool{
		maxPerHost: maxPerHost,
		idle:       make(map[string][]*PooledSession),
		active:     make(map[string]int),
	}
	p.dial = func(host string) (*PooledSession, error) {
		transport := &http.Transport{
			DialContext:           dialContext(connectTimeout),
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: readTimeout,
		}
		return &PooledSession{
			host:   host,
			client: &http.Client{Transport: transport},
		}, nil
	}
	return p
}

// Acquire returns an idle session for host, or a newly constructed one while
// the host's active count is below the maximum. It returns nil when the pool
// is exhausted or session creation fails; the caller must fall back to an
// unpooled send.
func (p *ConnectionPool) Acquire(host string) *PooledSession {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sessions := p.idle[host]; len(sessions) > 0 {
		session := sessions[len(sessions)-1]
		p.idle[host] = sessions[:len(sessions)-1]
		return session
	}

	if p.active[host] >= p.maxPerHost {
		return nil
	}

	session, err := p.dial(host)
	if err != nil || session == nil {
		return nil
	}
	p.active[host]++
	return session
}

// Release returns a healthy session to the idle list, closing it instead
// when the list is already full, or discards an unhealthy one and frees its
// slot in the host's active count.
func (p *ConnectionPool) Release(host string, session *PooledSession, healthy bool) {
	if session == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if healthy && len(p.idle[host]) < p.maxPerHost {
		p.idle[host] = append(p.idle[host], session)
		return
	}

	session.Close()
	if p.active[host] > 0 {
		p.active[host]--
	}
}

// Active returns the number of live sessions (idle plus checked out) for
// host.
func (p *ConnectionPool) Active(host string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[host]
}

// Reconfigure updates the per-host maximum, closing surplus idle sessions.
func (p *ConnectionPool) Reconfigure(maxPerHost int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maxPerHost = maxPerHost
	for host, sessions := range p.idle {
		for len(sessions) > maxPerHost {
			session := sessions[len(sessions)-1]
			sessions = sessions[:len(sessions)-1]
			session.Close()
			if p.active[host] > 0 {
				p.active[host]--
			}
		}
		p.idle[host] = sessions
	}
}
