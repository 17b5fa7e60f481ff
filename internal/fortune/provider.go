package fortune

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"fortuned/internal/metrics"
	"fortuned/internal/pseudofs"
	"fortuned/util"
)

// Handle identifies one open session.  Handles are opaque and never
// reused: a fresh Open always yields a new one.
type Handle = pseudofs.Handle

var _ pseudofs.Resource = (*Provider)(nil)

// session is the per-open state.  index never changes after Open;
// cursor counts the bytes already delivered.
type session struct {
	index  int
	text   string
	cursor int
	logged bool
}

// Provider hands out fortune sessions.  The catalog is shared
// read-only; everything else is keyed by Handle so that concurrent
// opens never interfere.
//
// A single session must not be read from concurrently.  Different
// sessions may be used from different goroutines.
type Provider struct {
	catalog     *Catalog
	logger      *util.Logger
	metrics     *metrics.Collector
	maxSessions int
	intn        func(n int) int

	mu       sync.Mutex
	sessions map[Handle]*session
}

// Option customises a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for the first-read record.
func WithLogger(l *util.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithMetrics attaches a metrics collector.  A nil collector is valid.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Provider) { p.metrics = c }
}

// WithMaxSessions caps the number of simultaneously open sessions.
// Zero means unlimited.
func WithMaxSessions(n int) Option {
	return func(p *Provider) { p.maxSessions = n }
}

// WithRand replaces the index generator.  intn must return a value in
// [0, n).
func WithRand(intn func(n int) int) Option {
	return func(p *Provider) { p.intn = intn }
}

// NewProvider returns a Provider serving fortunes from catalog.
func NewProvider(catalog *Catalog, opts ...Option) *Provider {
	p := &Provider{
		catalog:  catalog,
		logger:   util.NewLogger(0),
		intn:     rand.IntN,
		sessions: make(map[Handle]*session),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Catalog returns the catalog the provider serves from.
func (p *Provider) Catalog() *Catalog { return p.catalog }

// Open starts a new session and selects its fortune.  Nothing is
// logged until the first Read.
func (p *Provider) Open() (Handle, error) {
	idx := p.intn(p.catalog.Len())

	p.mu.Lock()
	if p.maxSessions > 0 && len(p.sessions) >= p.maxSessions {
		p.mu.Unlock()
		p.metrics.RecordError(ErrResourceExhausted.Error())
		return "", fmt.Errorf("open: %w", ErrResourceExhausted)
	}
	h := Handle(uuid.NewString())
	p.sessions[h] = &session{index: idx, text: p.catalog.At(idx)}
	p.mu.Unlock()

	p.metrics.SessionOpened(idx)
	return h, nil
}

// Read copies the next bytes of the session's fortune into buf and
// advances the cursor.  It returns 0, nil once the whole fortune has
// been delivered.
func (p *Provider) Read(h Handle, buf []byte) (int, error) {
	s, err := p.lookup("read", h)
	if err != nil {
		return 0, err
	}

	if !s.logged {
		s.logged = true
		p.logger.Info("fortune: session %s serving entry %d (%d bytes)",
			h, s.index, len(s.text))
	}

	if s.cursor >= len(s.text) {
		return 0, nil
	}

	n := copy(buf, s.text[s.cursor:])
	s.cursor += n
	p.metrics.Read(int64(n))
	return n, nil
}

// Close ends the session and releases its state.  Closing a handle
// twice is an error.
func (p *Provider) Close(h Handle) error {
	p.mu.Lock()
	_, ok := p.sessions[h]
	delete(p.sessions, h)
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("close %s: %w", h, ErrInvalidHandle)
	}

	p.metrics.SessionClosed()
	p.logger.Debug("fortune: closed session %s", h)
	return nil
}

// SessionInfo is a point-in-time view of an open session.
type SessionInfo struct {
	Index  int // catalog index chosen at Open
	Offset int // bytes already delivered
	Size   int // total fortune length in bytes
}

// Stat reports the state of an open session.
func (p *Provider) Stat(h Handle) (SessionInfo, error) {
	s, err := p.lookup("stat", h)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{Index: s.index, Offset: s.cursor, Size: len(s.text)}, nil
}

// OpenSessions returns the number of sessions currently open.
func (p *Provider) OpenSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Provider) lookup(op string, h Handle) (*session, error) {
	p.mu.Lock()
	s, ok := p.sessions[h]
	p.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%s %s: %w", op, h, ErrInvalidHandle)
	}
	return s, nil
}
