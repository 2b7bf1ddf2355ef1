package coap

import (
	"github.com/m-smartsolutions/nymea-coap/coapmsg"
	"github.com/sirupsen/logrus"
)

func (c *Client) logBlockAdvance(tx *transaction, blockNum uint32, more bool) {
	c.Logger.WithFields(tx.fields()).WithFields(logrus.Fields{
		"block_num": blockNum,
		"more":      more,
	}).Debug("block-wise transfer advanced")
}

// blockByteSize is the fixed 64-byte block size (SZX=2) spec.md
// mandates for all block-wise operations.
const blockByteSize = 64

// handleBlock1Ack drives the outbound (request-body) half of a
// block-wise transfer, per spec.md section 4.5. It is invoked when the
// active transaction's ID-based response carries a BLOCK1 option.
func (c *Client) handleBlock1Ack(tx *transaction, msg coapmsg.Message, ack coapmsg.BlockOption) {
	if ack.Num != tx.blockNum {
		c.failActive(tx, wrapError(KindInvalidPDU, nil))
		return
	}

	// Block size in bytes for the configured SZX (64 for the default SZX=2).
	blockByteSize := coapmsg.BlockOption{SZX: c.Config.BlockSZX}.Size()
	offset := int(ack.Num+1) * blockByteSize
	var chunk []byte
	if offset < len(tx.uploadBuf) {
		end := offset + blockByteSize
		if end > len(tx.uploadBuf) {
			end = len(tx.uploadBuf)
		}
		chunk = tx.uploadBuf[offset:end]
	}

	if len(chunk) == 0 {
		c.completeActive(tx, Result{StatusCode: msg.Code})
		return
	}

	more := len(chunk) == blockByteSize && offset+blockByteSize < len(tx.uploadBuf)
	nextNum := ack.Num + 1

	next := coapmsg.NewMessage()
	next.Type = coapmsg.Confirmable
	next.Code = methodCode(tx.req.Method)
	next.MessageID = c.msgIDs.Follow(msg.MessageID)
	next.Token = tx.token

	if tx.addedURIHost {
		next.Options().Set(coapmsg.URIHost, tx.req.URL.Hostname())
	}
	if tx.port != c.Config.DefaultPort {
		next.Options().Set(coapmsg.URIPort, uint16(tx.port))
	}
	next.SetPath(splitPath(tx.req.URL.Path))
	if q := splitQuery(tx.req.URL.RawQuery); len(q) > 0 {
		next.SetQuery(q)
	}
	next.SetBlock1(coapmsg.BlockOption{Num: nextNum, More: more, SZX: c.Config.BlockSZX})
	next.Payload = chunk

	raw, err := next.MarshalBinary()
	if err != nil {
		c.failActive(tx, wrapError(KindInvalidPDU, err))
		return
	}

	tx.msgID = next.MessageID
	tx.lastSent = raw
	tx.blockNum = nextNum

	c.logBlockAdvance(tx, nextNum, more)

	if err := c.Transport.Send(tx.req.Context(), tx.addr, tx.port, raw); err != nil {
		c.failActive(tx, wrapError(KindHostNotFound, err))
		return
	}

	resetBackoff(tx)
	c.armRetransmit(tx)
}

// handleBlock2Ack drives the inbound (response-body) half of a
// block-wise transfer, per spec.md section 4.5. It is invoked when the
// active transaction's ID-based response carries a BLOCK2 option.
func (c *Client) handleBlock2Ack(tx *transaction, msg coapmsg.Message, ack coapmsg.BlockOption) {
	if ack.Num != tx.blockNum {
		c.failActive(tx, wrapError(KindInvalidPDU, nil))
		return
	}

	tx.downloadBuf.Write(msg.Payload)

	if !ack.More {
		c.completeActive(tx, Result{
			StatusCode:    msg.Code,
			ContentFormat: coapmsg.MediaType(msg.Options().Get(coapmsg.ContentFormat).AsUInt8()),
			Payload:       tx.downloadBuf.Bytes(),
		})
		return
	}

	nextNum := ack.Num + 1

	next := coapmsg.NewMessage()
	next.Type = coapmsg.Confirmable
	next.Code = methodCode(tx.req.Method)
	next.MessageID = c.msgIDs.Follow(msg.MessageID)
	next.Token = tx.token

	if tx.addedURIHost {
		next.Options().Set(coapmsg.URIHost, tx.req.URL.Hostname())
	}
	if tx.port != c.Config.DefaultPort {
		next.Options().Set(coapmsg.URIPort, uint16(tx.port))
	}
	next.SetPath(splitPath(tx.req.URL.Path))
	if q := splitQuery(tx.req.URL.RawQuery); len(q) > 0 {
		next.SetQuery(q)
	}
	next.SetBlock2(coapmsg.BlockOption{Num: nextNum, More: false, SZX: c.Config.BlockSZX})

	raw, err := next.MarshalBinary()
	if err != nil {
		c.failActive(tx, wrapError(KindInvalidPDU, err))
		return
	}

	tx.msgID = next.MessageID
	tx.lastSent = raw
	tx.blockNum = nextNum

	c.logBlockAdvance(tx, nextNum, true)

	if err := c.Transport.Send(tx.req.Context(), tx.addr, tx.port, raw); err != nil {
		c.failActive(tx, wrapError(KindHostNotFound, err))
		return
	}

	resetBackoff(tx)
	c.armRetransmit(tx)
}
