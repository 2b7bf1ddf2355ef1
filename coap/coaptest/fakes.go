// Package coaptest provides in-memory fakes for coap.Transport,
// coap.Resolver and coap.Clock so the transaction engine's
// retransmission and block-wise logic can be exercised deterministically,
// without real sockets or real sleeps.
package coaptest

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/m-smartsolutions/nymea-coap/coap"
)

// Datagram records one call to FakeTransport.Send.
type Datagram struct {
	Addr net.IP
	Port uint16
	Data []byte
}

// FakeTransport records every outbound datagram and lets a test
// deliver inbound ones by calling Deliver, which invokes whatever
// receiver the engine installed via SetReceiver.
type FakeTransport struct {
	mu       sync.Mutex
	sent     []Datagram
	receiver func(addr net.IP, port uint16, data []byte)
	sendErr  error
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

func (t *FakeTransport) SetReceiver(receiver func(addr net.IP, port uint16, data []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiver = receiver
}

func (t *FakeTransport) Send(ctx context.Context, addr net.IP, port uint16, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.sent = append(t.sent, Datagram{Addr: addr, Port: port, Data: cp})
	return nil
}

// SetSendError makes every subsequent Send fail with err.
func (t *FakeTransport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Sent returns every datagram sent so far, in order.
func (t *FakeTransport) Sent() []Datagram {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Datagram, len(t.sent))
	copy(out, t.sent)
	return out
}

// LastSent returns the most recently sent datagram's bytes.
func (t *FakeTransport) LastSent() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return nil
	}
	return t.sent[len(t.sent)-1].Data
}

// Deliver feeds data into the engine's receiver as if it had arrived
// from addr:port.
func (t *FakeTransport) Deliver(addr net.IP, port uint16, data []byte) {
	t.mu.Lock()
	receiver := t.receiver
	t.mu.Unlock()
	if receiver != nil {
		receiver(addr, port, data)
	}
}

// FakeResolver answers every Resolve call with a fixed address, or a
// fixed error if Err is set.
type FakeResolver struct {
	Addr net.IP
	Err  error
}

func NewFakeResolver(addr net.IP) *FakeResolver {
	return &FakeResolver{Addr: addr}
}

func (r *FakeResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Addr, nil
}

// pendingTimer is one armed-but-not-yet-fired FakeClock timer.
type pendingTimer struct {
	at       time.Duration
	f        func()
	stopped  bool
}

func (p *pendingTimer) Stop() bool {
	if p.stopped {
		return false
	}
	p.stopped = true
	return true
}

// FakeClock is a manually-advanced coap.Clock: tests call Advance to
// move a virtual clock forward and fire any timers whose deadline has
// passed, in deadline order. No real time ever elapses.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*pendingTimer
}

func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) coap.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &pendingTimer{at: c.now + d, f: f}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the virtual clock forward by d, firing (in deadline
// order) every unstopped timer whose deadline is now due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	due := c.dueLocked()
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (c *FakeClock) dueLocked() []*pendingTimer {
	var due []*pendingTimer
	var remaining []*pendingTimer
	for _, t := range c.pending {
		if !t.stopped && t.at <= c.now {
			due = append(due, t)
		} else if !t.stopped {
			remaining = append(remaining, t)
		}
	}
	c.pending = remaining
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	return due
}

// PendingCount reports how many armed timers have not yet fired or
// been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Now returns the virtual clock's current time.
func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NextDeadline returns the earliest pending, unstopped timer's
// deadline.
func (c *FakeClock) NextDeadline() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	have := false
	var min time.Duration
	for _, t := range c.pending {
		if t.stopped {
			continue
		}
		if !have || t.at < min {
			min = t.at
			have = true
		}
	}
	return min, have
}

// FireNext advances the virtual clock to the earliest pending timer's
// deadline and fires every timer due at that instant. It reports
// whether there was a timer to fire.
func (c *FakeClock) FireNext() bool {
	d, ok := c.NextDeadline()
	if !ok {
		return false
	}
	c.mu.Lock()
	if d > c.now {
		c.now = d
	}
	due := c.dueLocked()
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return true
}
