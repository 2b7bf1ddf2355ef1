package coap

import (
	"fmt"
	"net"
	"sync"

	"github.com/m-smartsolutions/nymea-coap/coapmsg"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// transaction is the mutable per-request record the dispatcher drives
// through resolution, sending, retransmission and, for block-wise
// exchanges, a chain of follow-up requests. Exactly one transaction is
// active at a time; see dispatcher.go.
type transaction struct {
	client *Client
	req    *Request
	reply  *Reply

	// traceID correlates this transaction's log lines; it is not part
	// of the wire protocol.
	traceID uuid.UUID

	addr net.IP
	port uint16
	// addedURIHost records whether the initial PDU carried a URI-HOST
	// option, so block-wise follow-ups can mirror that choice.
	addedURIHost bool

	token []byte
	msgID uint16

	lastSent    []byte
	retransmits int
	backoff     *backoff.ExponentialBackOff
	timer       Timer

	// blockNum is the block NUM this transaction is currently
	// awaiting confirmation of (Block1) or data for (Block2).
	blockNum uint32
	uploadBuf []byte // full request payload, sliced for Block1
	downloadBuf SafeBuffer

	// doneMu guards finished; it is distinct from client.mu because
	// every caller of finish (Cancel, onDatagram, onRetransmitTimeout,
	// completeActive, finishAndPromote) has already released client.mu,
	// while onRetransmitTimeout reads finished while holding client.mu.
	// A dedicated mutex keeps that read/write pair race-free.
	doneMu   sync.Mutex
	finished bool
}

// methodCode maps a Request.Method to its CoAP request code.
func methodCode(method string) coapmsg.COAPCode {
	switch method {
	case "GET":
		return coapmsg.GET
	case "POST":
		return coapmsg.POST
	case "PUT":
		return coapmsg.PUT
	case "DELETE":
		return coapmsg.DELETE
	default:
		return coapmsg.Empty
	}
}

// finish marks the transaction finished and notifies its reply.
// finished is guarded by doneMu, not client.mu, since callers invoke
// finish after releasing client.mu; clearing the active
// slot / promoting the queue afterward remains the caller's
// responsibility, finish only touches the transaction and its reply.
func (tx *transaction) finish(result Result) {
	tx.doneMu.Lock()
	if tx.finished {
		tx.doneMu.Unlock()
		return
	}
	tx.finished = true
	tx.doneMu.Unlock()

	if tx.timer != nil {
		tx.timer.Stop()
	}
	tx.reply.finish(result)
}

// isFinished reports whether finish has already run.
func (tx *transaction) isFinished() bool {
	tx.doneMu.Lock()
	defer tx.doneMu.Unlock()
	return tx.finished
}

// fields returns the structured-logging fields common to every log
// line this transaction produces.
func (tx *transaction) fields() logrus.Fields {
	return logrus.Fields{
		"trace_id":   tx.traceID,
		"token":      fmt.Sprintf("%x", tx.token),
		"message_id": tx.msgID,
	}
}
