// Package kvserver provides the TCP wire protocol server.
package kvserver

import (
	"net"

	"golang.org/x/time/rate"

	"github.com/noxkv/nox-go/pkg/cmap"
)

// addrLimiter rate limits commands per remote address. Limiter states
// live in a sharded map so connections from different addresses do not
// contend on one lock.
type addrLimiter struct {
	limit  rate.Limit
	burst  int
	states *cmap.Map[*rate.Limiter]
}

func newAddrLimiter(perSecond float64, burst int) *addrLimiter {
	return &addrLimiter{
		limit:  rate.Limit(perSecond),
		burst:  burst,
		states: cmap.New[*rate.Limiter](),
	}
}

// allow reports whether a command from the given remote address fits
// its budget. The port is stripped so reconnects share one bucket.
func (l *addrLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	lim, _ := l.states.GetOrSet(host, rate.NewLimiter(l.limit, l.burst))
	return lim.Allow()
}
