// Package membership implements the static daemon list from spec §4.3: a
// fixed, ordered set of daemon addresses resolved once when a client mounts
// and never changed for the lifetime of that mount. There is no
// registration protocol, heartbeat, or dynamic join/leave — a daemon set
// change requires a fresh mount, matching spec's Non-goals for this
// module.
package membership

import (
	"fmt"
	"strings"
)

// List is an immutable, ordered set of daemon addresses. Index in the list
// IS the daemon's host id used throughout placement hashing and RPC
// dispatch (spec §4.1, §4.4).
type List struct {
	hosts []string
}

// New builds a List from a slice of "host:port" addresses. The order given
// is preserved and becomes each daemon's host id.
func New(hosts []string) (*List, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("membership: host list must not be empty")
	}
	cp := make([]string, len(hosts))
	copy(cp, hosts)
	return &List{hosts: cp}, nil
}

// Parse builds a List from a comma-separated "host:port,host:port,..."
// string, the form core/config reads from the environment.
func Parse(csv string) (*List, error) {
	parts := strings.Split(csv, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		hosts = append(hosts, p)
	}
	return New(hosts)
}

// Count returns the number of daemons in the mount, i.e. the H used by
// core/placement.Hash.
func (l *List) Count() uint32 { return uint32(len(l.hosts)) }

// Addr returns the address of the daemon with the given host id. It panics
// on an out-of-range id, since every caller derives the id either from
// placement.Hash(..., l.Count()) or from the range [0, l.Count()), neither
// of which can produce one.
func (l *List) Addr(hostID uint32) string {
	return l.hosts[hostID]
}

// All returns every daemon address in host-id order.
func (l *List) All() []string {
	out := make([]string, len(l.hosts))
	copy(out, l.hosts)
	return out
}
