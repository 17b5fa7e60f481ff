// Package pseudofs is a flat namespace of read-only virtual resources,
// in the spirit of entries under /proc.  Each name maps to a Resource
// that hands out independent sessions with open/read/release
// semantics.  There is no write operation.
package pseudofs

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"fortuned/util"
)

var (
	// ErrNotExist is returned when opening a name nobody registered.
	ErrNotExist = errors.New("no such entry")

	// ErrExist is returned when registering a name twice.
	ErrExist = errors.New("entry already exists")
)

// Handle identifies one open session of a Resource.  Handles are
// opaque; only the Resource that issued one can interpret it.
type Handle string

// Resource is a virtual readable resource with per-session state.
// Read follows partial-read conventions: it may return fewer bytes
// than requested, and 0 bytes with a nil error means end of data.
type Resource interface {
	Open() (Handle, error)
	Read(h Handle, p []byte) (int, error)
	Close(h Handle) error
}

// Namespace maps fixed names to resources.  Registration normally
// happens once at start-up and removal once at shutdown; lookups are
// safe for concurrent use.
type Namespace struct {
	logger *util.Logger

	mu      sync.RWMutex
	entries map[string]Resource
}

// New returns an empty namespace that logs registrations to logger.
// A nil logger is quiet.
func New(logger *util.Logger) *Namespace {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Namespace{logger: logger, entries: make(map[string]Resource)}
}

// Register publishes r under name.
func (ns *Namespace) Register(name string, r Resource) error {
	if name == "" {
		return fmt.Errorf("register: empty name")
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, ok := ns.entries[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrExist)
	}
	ns.entries[name] = r
	ns.logger.Info("/%s created", name)
	return nil
}

// Unregister removes name.  Sessions already open on the resource stay
// valid until closed; new opens fail with ErrNotExist.
func (ns *Namespace) Unregister(name string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, ok := ns.entries[name]; !ok {
		return fmt.Errorf("unregister %q: %w", name, ErrNotExist)
	}
	delete(ns.entries, name)
	ns.logger.Info("/%s removed", name)
	return nil
}

// Close unregisters every entry.  It is called when the process stops
// serving, mirroring module unload.
func (ns *Namespace) Close() error {
	var errs []error
	for _, name := range ns.Names() {
		if err := ns.Unregister(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the resource registered under name.
func (ns *Namespace) Lookup(name string) (Resource, error) {
	ns.mu.RLock()
	r, ok := ns.entries[name]
	ns.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotExist)
	}
	return r, nil
}

// Open opens a new session on the resource registered under name.
func (ns *Namespace) Open(name string) (Resource, Handle, error) {
	r, err := ns.Lookup(name)
	if err != nil {
		return nil, "", err
	}
	h, err := r.Open()
	if err != nil {
		return nil, "", err
	}
	return r, h, nil
}

// Names returns every registered name in sorted order.
func (ns *Namespace) Names() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	out := make([]string, 0, len(ns.entries))
	for name := range ns.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
