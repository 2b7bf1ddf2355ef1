package coap

import "github.com/m-smartsolutions/nymea-coap/coapmsg"

// Result is the terminal outcome of a submitted request: either a
// CoAP response (any status code, including 4.xx/5.xx - those are not
// engine failures) or a failure Kind describing why no response could
// be delivered.
type Result struct {
	// Err is non-nil exactly when the transaction failed before a
	// response was obtained (bad scheme, host lookup, timeout,
	// cancellation, invalid PDU, or a RESET from the peer).
	Err *Error

	StatusCode    coapmsg.COAPCode
	ContentFormat coapmsg.MediaType
	Payload       []byte

	// Request is the request that produced this result.
	Request *Request
}

// Reply is the handle returned by Client.Submit. Callers either block
// on Done() or poll Result() after it closes.
type Reply struct {
	done   chan struct{}
	result Result
}

func newReply(req *Request) *Reply {
	return &Reply{
		done:   make(chan struct{}),
		result: Result{Request: req},
	}
}

// Done returns a channel that closes once the transaction reaches a
// terminal state.
func (r *Reply) Done() <-chan struct{} {
	return r.done
}

// Result returns the terminal outcome. It must only be read after
// Done() has closed; reading earlier returns a Result carrying only
// Request.
func (r *Reply) Result() Result {
	return r.result
}

// finish records the terminal outcome and unblocks Done(). It must be
// called at most once.
func (r *Reply) finish(result Result) {
	result.Request = r.result.Request
	r.result = result
	close(r.done)
}
