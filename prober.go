package kroute

import (
	"context"
	"net/netip"
	"time"
)

// Liveness is the result of a probe.
type Liveness int

const (
	Unreachable Liveness = iota
	Reachable
)

func (l Liveness) String() string {
	if l == Reachable {
		return "reachable"
	}

	return "unreachable"
}

// Prober checks whether a peer answers. Implementations should return once
// ctx is done; a probe that has not answered by then counts as Unreachable
// whatever it returns later.
type Prober interface {
	Probe(ctx context.Context, addr netip.AddrPort) Liveness
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, addr netip.AddrPort) Liveness

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, addr netip.AddrPort) Liveness {
	return f(ctx, addr)
}

// probe runs prober against addr, giving up after timeout or when ctx is done.
// A timeout that is not positive means DefaultProbeTimeout.
func probe(ctx context.Context, prober Prober, addr netip.AddrPort, timeout time.Duration) Liveness {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan Liveness, 1)
	go func() {
		result <- prober.Probe(ctx, addr)
	}()

	select {
	case l := <-result:
		if ctx.Err() != nil {
			return Unreachable
		}
		return l
	case <-ctx.Done():
		return Unreachable
	}
}
