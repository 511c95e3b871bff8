package probe

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/attilabuti/kroute"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addr = netip.MustParseAddrPort("127.0.0.1:6881")

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// A reply acknowledged by the transport makes the peer reachable.
func TestPendingReachable(t *testing.T) {
	var p *Pending
	p = NewPending(SenderFunc(func(_ context.Context, to netip.AddrPort, requestId string) error {
		assert.Equal(t, addr, to)
		assert.NotEmpty(t, requestId)

		go p.Ack(requestId)
		return nil
	}), nopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.Equal(t, kroute.Reachable, p.Probe(ctx, addr))
	assert.Equal(t, 0, p.Outstanding())
}

func TestPendingTimeout(t *testing.T) {
	var requestId string
	p := NewPending(SenderFunc(func(_ context.Context, _ netip.AddrPort, id string) error {
		requestId = id
		return nil
	}), nopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Equal(t, kroute.Unreachable, p.Probe(ctx, addr))
	assert.Equal(t, 0, p.Outstanding())

	// A late reply is ignored.
	assert.False(t, p.Ack(requestId))
}

func TestPendingSendError(t *testing.T) {
	p := NewPending(SenderFunc(func(context.Context, netip.AddrPort, string) error {
		return errors.New("network unreachable")
	}), nopLogger())

	assert.Equal(t, kroute.Unreachable, p.Probe(context.Background(), addr))
	assert.Equal(t, 0, p.Outstanding())
}

func TestPendingAckUnknown(t *testing.T) {
	p := NewPending(nil, nopLogger())
	assert.False(t, p.Ack("unknown"))
}

// Pending plugs into a routing table as its prober.
func TestPendingRoutingTable(t *testing.T) {
	var p *Pending
	p = NewPending(SenderFunc(func(_ context.Context, to netip.AddrPort, requestId string) error {
		// Only the peer on port 1 answers.
		if to.Port() == 1 {
			go p.Ack(requestId)
		}
		return nil
	}), nopLogger())

	table, err := kroute.NewRoutingTable(kroute.Options{
		LocalNodeId:     kroute.NodeId{0x00},
		NodesPerKBucket: 1,
		ProbeTimeout:    50 * time.Millisecond,
		Prober:          p,
		Logger:          nopLogger(),
	}, nil)
	require.NoError(t, err)

	see := func(id byte, port uint16) kroute.Outcome {
		outcome, err := table.See(context.Background(), kroute.Contact{
			Id:       kroute.NodeId{id},
			AddrPort: netip.AddrPortFrom(addr.Addr(), port),
		})
		require.NoError(t, err)
		return outcome
	}

	// Split the root so that 0x80.. lands in a bucket that cannot be split.
	assert.Equal(t, kroute.OutcomeInserted, see(0x80, 1))
	assert.Equal(t, kroute.OutcomeDiscarded, see(0x90, 2))
	assert.Equal(t, 1, table.Depth())

	// Replace the live head with a dead one, then evict it.
	assert.True(t, table.Remove(kroute.NodeId{0x80}))
	assert.Equal(t, kroute.OutcomeInserted, see(0xa0, 2))
	assert.Equal(t, kroute.OutcomeEvicted, see(0xb0, 3))
	assert.True(t, table.Has(kroute.NodeId{0xb0}))
	assert.False(t, table.Has(kroute.NodeId{0xa0}))
}
