package client

import (
	"fmt"
	"net/rpc"
	"time"

	gkfserr "github.com/gekkofs/datapath/core/errors"
	"github.com/gekkofs/datapath/core/membership"
	"github.com/gekkofs/datapath/lib/cmap"
	"github.com/gekkofs/datapath/lib/logger"
)

// Dispatcher sends RPCs to a fixed set of daemons, one daemon per Call
// (Client runs the Calls of one operation in parallel), each call bounded
// by a per-attempt timeout and retried up to a fixed count
// (spec §4.4/§9 default T=150ms, R=3). Connections are dialed once per
// daemon and cached; a call that times out drops its connection so the
// next attempt redials rather than waiting on a possibly wedged socket.
type Dispatcher struct {
	members *membership.List
	conns   cmap.Map[uint32, *rpc.Client]
	timeout time.Duration
	retries int
	log     *logger.Logger
}

// NewDispatcher constructs a Dispatcher over members, with the given
// per-attempt timeout and retry count.
func NewDispatcher(members *membership.List, timeout time.Duration, retries int, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		members: members,
		conns:   cmap.NewMap[uint32, *rpc.Client](),
		timeout: timeout,
		retries: retries,
		log:     log,
	}
}

func (d *Dispatcher) connFor(hostID uint32) (*rpc.Client, error) {
	if c, ok := d.conns.Get(hostID); ok {
		return c, nil
	}

	c, err := rpc.DialHTTP("tcp", d.members.Addr(hostID))
	if err != nil {
		return nil, gkfserr.Transport("dial", err)
	}

	d.conns.Set(hostID, c)
	return c, nil
}

// Call invokes serviceMethod on the daemon identified by hostID, retrying
// on timeout or transport failure up to d.retries additional times (spec
// §4.4's "dispatched in parallel with timeout+retry"). Both a timed-out
// call and one that comes back with a transport-level error drop the
// cached connection before retrying, since either one means the *rpc.Client
// can no longer be trusted for a fresh call; a timed-out call is left
// running server-side (spec's task system is non-cancellable) and the
// client simply gives up waiting on it.
func (d *Dispatcher) Call(hostID uint32, serviceMethod string, args, reply interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		conn, err := d.connFor(hostID)
		if err != nil {
			lastErr = err
			continue
		}

		call := conn.Go(serviceMethod, args, reply, make(chan *rpc.Call, 1))

		select {
		case res := <-call.Done:
			if res.Error != nil {
				lastErr = gkfserr.Transport(serviceMethod, res.Error)
				d.conns.Delete(hostID)
				continue
			}
			return nil
		case <-time.After(d.timeout):
			lastErr = gkfserr.Transport(serviceMethod, fmt.Errorf("timed out after %s waiting on host %d", d.timeout, hostID))
			d.conns.Delete(hostID)
			if d.log != nil {
				d.log.Warnw("rpc call timed out", "method", serviceMethod, "host", hostID, "attempt", attempt)
			}
		}
	}

	return lastErr
}

// Close closes every cached connection.
func (d *Dispatcher) Close() {
	d.conns.Range(func(_ uint32, c *rpc.Client) bool {
		_ = c.Close()
		return true
	})
}
