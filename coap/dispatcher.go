package coap

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-smartsolutions/nymea-coap/coapmsg"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/m-smartsolutions/nymea-coap/internal/config"
)

// Client submits CoAP requests and drives them to completion. It is
// the single-in-flight dispatcher described by the package: at most
// one transaction is active at a time, with a FIFO queue of the rest.
// A Client is safe for concurrent use; Submit may be called from any
// goroutine, and all dispatcher state is guarded by one mutex so the
// engine only ever observes one state transition at a time.
type Client struct {
	Config    config.Config
	Resolver  Resolver
	Transport Transport
	Clock     Clock
	TokenGen  TokenGenerator
	Logger    logrus.FieldLogger

	msgIDs *messageIDGenerator

	mu     sync.Mutex
	active *transaction
	queue  []*transaction
}

// NewClient wires a Client against the given collaborators. cfg is
// used exactly as given; a zero Config is not replaced by
// config.Default(), so callers normally pass config.Default().
func NewClient(resolver Resolver, transport Transport, clock Clock, cfg config.Config) *Client {
	c := &Client{
		Config:    cfg,
		Resolver:  resolver,
		Transport: transport,
		Clock:     clock,
		TokenGen:  NewRandomTokenGenerator(),
		Logger:    logrus.StandardLogger(),
		msgIDs:    newMessageIDGenerator(),
	}
	transport.SetReceiver(c.onDatagram)
	return c
}

// Get issues a GET to url.
func (c *Client) Get(url string) *Reply {
	req, err := NewRequest("GET", url, nil)
	if err != nil {
		return failedReply(req, err)
	}
	return c.Submit(req)
}

// Post issues a POST carrying payload in the given content format.
func (c *Client) Post(url string, contentFormat coapmsg.MediaType, payload []byte) *Reply {
	req, err := NewRequest("POST", url, payload)
	if err != nil {
		return failedReply(req, err)
	}
	req.ContentFormat = uint16(contentFormat)
	return c.Submit(req)
}

// Put issues a PUT carrying payload in the given content format.
func (c *Client) Put(url string, contentFormat coapmsg.MediaType, payload []byte) *Reply {
	req, err := NewRequest("PUT", url, payload)
	if err != nil {
		return failedReply(req, err)
	}
	req.ContentFormat = uint16(contentFormat)
	return c.Submit(req)
}

// Delete issues a DELETE.
func (c *Client) Delete(url string) *Reply {
	req, err := NewRequest("DELETE", url, nil)
	if err != nil {
		return failedReply(req, err)
	}
	return c.Submit(req)
}

// Ping sends an empty CONFIRMABLE message, completing on any matching
// ACK or RST. It reuses the transaction/retransmission machinery
// unchanged; a ping simply never takes a Block1/Block2 branch.
func (c *Client) Ping(url string) *Reply {
	req, err := NewRequest("EMPTY", url, nil)
	if err != nil {
		return failedReply(req, err)
	}
	return c.Submit(req)
}

func failedReply(req *Request, err error) *Reply {
	r := newReply(req)
	r.finish(Result{Err: wrapError(KindInvalidURLScheme, err)})
	return r
}

// Submit creates a transaction for req and either starts it
// immediately or queues it behind the currently active transaction.
func (c *Client) Submit(req *Request) *Reply {
	reply := newReply(req)

	if req.URL == nil || req.URL.Scheme != "coap" {
		scheme := ""
		if req.URL != nil {
			scheme = req.URL.Scheme
		}
		reply.finish(Result{Err: wrapError(KindInvalidURLScheme, fmt.Errorf("unsupported scheme %q", scheme))})
		return reply
	}

	tx := &transaction{
		client:  c,
		req:     req,
		reply:   reply,
		traceID: uuid.New(),
	}

	c.mu.Lock()
	if c.active == nil {
		c.active = tx
		c.mu.Unlock()
		c.start(tx)
	} else {
		c.queue = append(c.queue, tx)
		c.mu.Unlock()
	}

	if done := req.Context().Done(); done != nil {
		go func() {
			select {
			case <-done:
				c.Cancel(reply)
			case <-reply.Done():
			}
		}()
	}

	return reply
}

// Cancel aborts a submitted-but-not-finished request. A queued
// transaction is removed from the queue; an active one has its timer
// stopped and the next queued transaction promoted. Already
// transmitted datagrams are never un-sent.
func (c *Client) Cancel(reply *Reply) bool {
	c.mu.Lock()
	if c.active != nil && c.active.reply == reply {
		tx := c.active
		c.active = nil
		c.mu.Unlock()
		tx.finish(Result{Err: wrapError(KindCancelled, nil)})
		c.promoteNext()
		return true
	}
	for i, tx := range c.queue {
		if tx.reply == reply {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			c.mu.Unlock()
			tx.finish(Result{Err: wrapError(KindCancelled, nil)})
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// start resolves the request's host and, on success, builds and sends
// the initial PDU.
func (c *Client) start(tx *transaction) {
	host := tx.req.URL.Hostname()
	ctx := tx.req.Context()

	addr, err := c.Resolver.Resolve(ctx, host)
	if err != nil {
		c.finishAndPromote(tx, Result{Err: wrapError(KindHostNotFound, err)})
		return
	}

	port := c.Config.DefaultPort
	if p := tx.req.URL.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = uint16(n)
		}
	}

	tx.addr = addr
	tx.port = port
	tx.addedURIHost = host != addr.String()
	tx.msgID = c.msgIDs.Next()
	tx.token = c.TokenGen.NextToken()

	msg := coapmsg.NewMessage()
	if tx.req.Confirmable {
		msg.Type = coapmsg.Confirmable
	} else {
		msg.Type = coapmsg.NonConfirmable
	}
	msg.Code = methodCode(tx.req.Method)
	msg.MessageID = tx.msgID
	msg.Token = tx.token

	if tx.addedURIHost {
		msg.Options().Set(coapmsg.URIHost, host)
	}
	msg.SetPath(splitPath(tx.req.URL.Path))
	if q := splitQuery(tx.req.URL.RawQuery); len(q) > 0 {
		msg.SetQuery(q)
	}

	switch tx.req.Method {
	case "GET":
		msg.SetBlock2(coapmsg.BlockOption{Num: 0, More: false, SZX: c.Config.BlockSZX})
	case "POST", "PUT":
		msg.Options().Set(coapmsg.ContentFormat, tx.req.ContentFormat)
		blockSize := 1 << (c.Config.BlockSZX + 4)
		if len(tx.req.Payload) > blockSize {
			tx.uploadBuf = tx.req.Payload
			msg.SetBlock1(coapmsg.BlockOption{Num: 0, More: true, SZX: c.Config.BlockSZX})
			msg.Payload = tx.req.Payload[:blockSize]
		} else {
			msg.Payload = tx.req.Payload
		}
	}

	raw, err := msg.MarshalBinary()
	if err != nil {
		c.finishAndPromote(tx, Result{Err: wrapError(KindInvalidPDU, err)})
		return
	}
	tx.lastSent = raw

	c.Logger.WithFields(tx.fields()).WithField("method", tx.req.Method).Debug("sending request")

	if err := c.Transport.Send(ctx, tx.addr, tx.port, raw); err != nil {
		c.finishAndPromote(tx, Result{Err: wrapError(KindHostNotFound, err)})
		return
	}

	if !tx.req.Confirmable {
		c.finishAndPromote(tx, Result{})
		return
	}

	c.armRetransmit(tx)
}

// armRetransmit (re)starts the retransmission timer, drawing a fresh
// random initial timeout the first time it is called for tx and
// doubling on every subsequent call, per the exponential back-off
// schedule in spec.md section 4.4.
func (c *Client) armRetransmit(tx *transaction) {
	if tx.backoff == nil {
		initial := randomDuration(c.Config.RetransmitInitialMin, c.Config.RetransmitInitialMax)
		tx.backoff = backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(initial),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0),
			backoff.WithMaxInterval(time.Hour),
			backoff.WithMaxElapsedTime(0),
		)
		tx.retransmits = 0
	}
	d := tx.backoff.NextBackOff()
	tx.timer = c.Clock.AfterFunc(d, func() { c.onRetransmitTimeout(tx) })
	c.Logger.WithFields(tx.fields()).WithFields(logrus.Fields{
		"retransmit": tx.retransmits,
		"timeout":    d,
	}).Debug("armed retransmission timer")
}

// resetBackoff clears the retransmission schedule so the next
// armRetransmit draws a fresh random initial timeout, per the
// "reset the retransmit counter on every successful block advance"
// rule.
func resetBackoff(tx *transaction) {
	tx.backoff = nil
}

func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func (c *Client) onRetransmitTimeout(tx *transaction) {
	c.mu.Lock()
	if tx.isFinished() || c.active != tx {
		c.mu.Unlock()
		return
	}
	if tx.retransmits >= c.Config.RetransmitMaxAttempts {
		c.active = nil
		c.mu.Unlock()
		c.Logger.WithFields(tx.fields()).Warn("retransmission budget exhausted, failing with TIMEOUT")
		tx.finish(Result{Err: wrapError(KindTimeout, nil)})
		c.promoteNext()
		return
	}
	tx.retransmits++
	c.mu.Unlock()

	c.Logger.WithFields(tx.fields()).WithField("retransmit", tx.retransmits).Debug("retransmitting request")
	c.Transport.Send(tx.req.Context(), tx.addr, tx.port, tx.lastSent)

	c.mu.Lock()
	if !tx.isFinished() && c.active == tx {
		tx.timer = c.Clock.AfterFunc(tx.backoff.NextBackOff(), func() { c.onRetransmitTimeout(tx) })
	}
	c.mu.Unlock()
}

// onDatagram is installed as the Transport's receive callback. It
// routes every inbound datagram to the active transaction per the
// rules in spec.md section 4.4; unrelated datagrams are dropped.
func (c *Client) onDatagram(addr net.IP, port uint16, data []byte) {
	msg, err := coapmsg.ParseMessage(data)
	if err != nil {
		c.mu.Lock()
		tx := c.active
		if tx == nil {
			c.mu.Unlock()
			return
		}
		c.active = nil
		c.mu.Unlock()
		tx.finish(Result{Err: wrapError(KindInvalidPDU, err)})
		c.promoteNext()
		return
	}

	c.mu.Lock()
	tx := c.active
	if tx == nil {
		c.mu.Unlock()
		return
	}

	switch {
	case msg.Type == coapmsg.Reset:
		if msg.MessageID != tx.msgID {
			c.mu.Unlock()
			return
		}
		c.active = nil
		c.mu.Unlock()
		tx.finish(Result{Err: wrapError(KindProtocolError, nil)})
		c.promoteNext()

	case msg.MessageID == tx.msgID:
		c.mu.Unlock()
		c.handleIDBasedResponse(tx, msg)

	case bytesEqual(msg.Token, tx.token):
		c.mu.Unlock()
		c.handleSeparateResponse(tx, msg)

	default:
		c.mu.Unlock()
	}
}

// handleIDBasedResponse implements spec.md section 4.4 step 2.
func (c *Client) handleIDBasedResponse(tx *transaction, msg coapmsg.Message) {
	if tx.timer != nil {
		tx.timer.Stop()
	}

	if msg.Code == coapmsg.Empty && msg.Type == coapmsg.Acknowledgement {
		if tx.req.Method == "EMPTY" {
			// A ping is answered by the empty ACK itself.
			c.completeActive(tx, Result{StatusCode: msg.Code})
			return
		}
		// Empty ACK: stop waiting for retransmission, keep the
		// transaction pending for a later separate response.
		return
	}

	if block1, ok, err := msg.Block1(); ok {
		if err != nil {
			c.failActive(tx, wrapError(KindInvalidPDU, err))
			return
		}
		c.handleBlock1Ack(tx, msg, block1)
		return
	}

	if block2, ok, err := msg.Block2(); ok {
		if err != nil {
			c.failActive(tx, wrapError(KindInvalidPDU, err))
			return
		}
		c.handleBlock2Ack(tx, msg, block2)
		return
	}

	c.completeActive(tx, Result{
		StatusCode:    msg.Code,
		ContentFormat: coapmsg.MediaType(msg.Options().Get(coapmsg.ContentFormat).AsUInt8()),
		Payload:       msg.Payload,
	})
}

// handleSeparateResponse implements spec.md section 4.4 step 3: ack
// the separate response and complete the reply.
func (c *Client) handleSeparateResponse(tx *transaction, msg coapmsg.Message) {
	ack := coapmsg.NewAck(msg.MessageID)
	raw, err := ack.MarshalBinary()
	if err == nil {
		c.Transport.Send(tx.req.Context(), tx.addr, tx.port, raw)
	}

	c.completeActive(tx, Result{
		StatusCode:    msg.Code,
		ContentFormat: coapmsg.MediaType(msg.Options().Get(coapmsg.ContentFormat).AsUInt8()),
		Payload:       msg.Payload,
	})
}

// completeActive finishes tx with result, clears the active slot and
// promotes the queue.
func (c *Client) completeActive(tx *transaction, result Result) {
	c.mu.Lock()
	if c.active == tx {
		c.active = nil
	}
	c.mu.Unlock()
	tx.finish(result)
	c.promoteNext()
}

func (c *Client) failActive(tx *transaction, err *Error) {
	c.completeActive(tx, Result{Err: err})
}

func (c *Client) finishAndPromote(tx *transaction, result Result) {
	c.mu.Lock()
	if c.active == tx {
		c.active = nil
	} else {
		for i, q := range c.queue {
			if q == tx {
				c.queue = append(c.queue[:i], c.queue[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()
	tx.finish(result)
	c.promoteNext()
}

// promoteNext starts the queue head if the active slot is free.
func (c *Client) promoteNext() {
	c.mu.Lock()
	if c.active != nil || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	c.active = next
	c.mu.Unlock()
	c.start(next)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func splitQuery(q string) []string {
	if q == "" {
		return nil
	}
	var out []string
	for _, seg := range strings.Split(q, "&") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
