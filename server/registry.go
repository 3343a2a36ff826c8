package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/stcp/common"
	"github.com/ValentinKolb/stcp/conn"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Registry entry
// --------------------------------------------------------------------------

// Entry wraps a Connection with server-assigned bookkeeping. Name and Meta
// are opaque to the core and mutated only through the registry's locked
// accessors.
type Entry struct {
	Conn    *conn.Connection
	Name    string
	Meta    interface{}
	AddedAt time.Time

	// ready is set once the handshake succeeded; only ready entries are
	// visible to Send/Receive lookups
	ready bool
}

// Info returns the identity payload for this entry
func (e *Entry) Info() common.ConnectionInfo {
	info := e.Conn.Info()
	info.Name = e.Name
	return info
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry is the concurrent mapping from connection identity to connection
// state. It is the only structure mutated from multiple independent loops
// (accept loop, monitors, application calls) and is protected by a single
// coarse lock for all mutation and enumeration.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*Entry)}
}

// Add registers an entry. The registry never contains two entries with the
// same identity.
func (r *Registry) Add(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := e.Conn.ID()
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("duplicate connection identity %s", id)
	}
	e.AddedAt = time.Now()
	r.entries[id] = e
	return nil
}

// Remove deletes and returns the entry for id
func (r *Registry) Remove(id uuid.UUID) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return e, ok
}

// Get returns the entry for id. Entries whose handshake has not completed
// are not yet visible.
func (r *Registry) Get(id uuid.UUID) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || !e.ready {
		return nil, false
	}
	return e, true
}

// MarkReady makes the entry visible to Send/Receive lookups
func (r *Registry) MarkReady(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.ready = true
	}
}

// Count returns the number of registered, not-yet-removed connections
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// List returns a snapshot copy of all entries; callers iterating it never
// observe concurrent mutation
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	return snapshot
}

// Infos returns a snapshot of the identity payloads of all entries
func (r *Registry) Infos() []common.ConnectionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]common.ConnectionInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, e.Info())
	}
	return infos
}

// FindIDByAddress returns the identity of the connection with the given
// remote address. Linear scan, kept as a legacy compatibility path -
// identity-based lookup is O(1) and preferred.
func (r *Registry) FindIDByAddress(addr string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		if e.Conn.RemoteAddr() == addr {
			return id, true
		}
	}
	return uuid.Nil, false
}

// SetName sets the caller-settable display name for id
func (r *Registry) SetName(id uuid.UUID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if ok {
		e.Name = name
	}
	return ok
}

// SetMeta attaches arbitrary caller metadata to id
func (r *Registry) SetMeta(id uuid.UUID, meta interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if ok {
		e.Meta = meta
	}
	return ok
}

// GetMeta returns the caller metadata attached to id
func (r *Registry) GetMeta(id uuid.UUID) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.Meta, true
}
