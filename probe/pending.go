// Package probe implements kroute.Prober on top of a request/reply transport.
package probe

import (
	"context"
	"net/netip"
	"sync"

	"github.com/attilabuti/kroute"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// Sender sends a ping carrying requestId to addr. The transport is expected to
// call Pending.Ack with the same requestId when the matching reply arrives.
type Sender interface {
	SendPing(ctx context.Context, addr netip.AddrPort, requestId string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, addr netip.AddrPort, requestId string) error

// SendPing implements Sender.
func (f SenderFunc) SendPing(ctx context.Context, addr netip.AddrPort, requestId string) error {
	return f(ctx, addr, requestId)
}

// Pending is a kroute.Prober that matches ping replies to outstanding probes
// by request id.
//
// - implements kroute.Prober
type Pending struct {
	sync.Mutex
	sender   Sender
	channels map[string]chan struct{}
	log      zerolog.Logger
}

// NewPending creates a Pending prober sending pings through sender. A nil
// logger disables logging.
func NewPending(sender Sender, logger *zerolog.Logger) *Pending {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}

	return &Pending{
		sender:   sender,
		channels: make(map[string]chan struct{}),
		log:      l.With().Str("component", "probe").Logger(),
	}
}

// Probe implements kroute.Prober. It sends a ping and waits for its Ack until
// ctx is done.
func (p *Pending) Probe(ctx context.Context, addr netip.AddrPort) kroute.Liveness {
	requestId := xid.New().String()

	channel := p.set(requestId)
	defer p.delete(requestId)

	if err := p.sender.SendPing(ctx, addr, requestId); err != nil {
		p.log.Error().Err(err).Str("addr", addr.String()).Msg("send ping")
		return kroute.Unreachable
	}

	select {
	case <-channel:
		return kroute.Reachable
	case <-ctx.Done():
		p.log.Debug().Str("addr", addr.String()).Str("request", requestId).Msg("ping timed out")
		return kroute.Unreachable
	}
}

// Ack records the reply to the ping with the given request id. It returns
// false if no probe is waiting for it, e.g. because it already timed out.
func (p *Pending) Ack(requestId string) bool {
	p.Lock()
	defer p.Unlock()

	channel, ok := p.channels[requestId]
	if !ok {
		return false
	}

	close(channel)
	delete(p.channels, requestId)

	return true
}

// Outstanding returns the number of probes waiting for a reply.
func (p *Pending) Outstanding() int {
	p.Lock()
	defer p.Unlock()

	return len(p.channels)
}

func (p *Pending) set(requestId string) chan struct{} {
	p.Lock()
	defer p.Unlock()

	channel := make(chan struct{})
	p.channels[requestId] = channel

	return channel
}

func (p *Pending) delete(requestId string) {
	p.Lock()
	defer p.Unlock()

	delete(p.channels, requestId)
}
