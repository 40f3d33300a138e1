// Package fleet holds the discovered-server data model, the selection
// policy that picks a backend out of it, and the tabular status renderer.
package fleet

import (
	"net"

	"github.com/real-xinu/xkdb/internal/wire"
)

// Holder names the user currently occupying a backend.
type Holder = wire.Holder

// BackendRecord is an immutable snapshot of one backend reported by a server.
type BackendRecord = wire.BackendRecord

// Free reports whether a backend has no holder.
func Free(b BackendRecord) bool { return b.Holder == nil }

// ServerRecord is one responder to a discovery round, with its full backend
// roster as reported in a single LIST response.
type ServerRecord struct {
	Name     string
	Addr     net.IP
	Backends []BackendRecord
}

// Fleet is the set of servers discovered in one round, insertion-ordered by
// first response and keyed internally by responding address so duplicate
// responses from the same address collapse to the first one seen.
type Fleet struct {
	servers []ServerRecord
	seen    map[string]struct{}
}

// NewFleet returns an empty fleet ready to accumulate discovery responses.
func NewFleet() *Fleet {
	return &Fleet{seen: make(map[string]struct{})}
}

// Add appends a server to the fleet unless its address has already
// responded this round, in which case the new response is ignored.
func (f *Fleet) Add(s ServerRecord) bool {
	key := s.Addr.String()
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	f.servers = append(f.servers, s)
	return true
}

// Servers returns the fleet's servers in discovery order.
func (f *Fleet) Servers() []ServerRecord { return f.servers }

// Len returns the number of distinct servers in the fleet.
func (f *Fleet) Len() int { return len(f.servers) }
