package seclient

import (
	"github.com/google/uuid"

	"github.com/dkrall/sevault/internal/apdu"
	"github.com/dkrall/sevault/internal/record"
)

type direction int

const (
	directionStore direction = iota
	directionRead
)

type phase int

const (
	phaseContinuing phase = iota
	phaseDrained
)

// transfer is the state of one in-flight chunked operation. It exists
// only between a successful INIT and the operation's end; any
// unrecoverable failure destroys it, after which CONTINUE/FINALIZE fail
// fast without touching the transport.
type transfer struct {
	id          uuid.UUID
	dir         direction
	phase       phase
	transferred int
	total       int // read direction only; store never learns it
	buf         []byte
}

// abort tears down the in-flight operation. The device-side partial
// state is device-defined; no rollback is attempted.
func (c *Client) abort() {
	if c.op != nil {
		c.log.Warn().Str("op", c.op.id.String()).Msg("operation aborted")
		c.op = nil
	}
}

// BeginStore opens a store context for key. A non-success status means
// the device refused the key (duplicate, storage exhausted, malformed);
// the status word is all the caller gets.
func (c *Client) BeginStore(key record.Key) error {
	if c.op != nil {
		return ErrOperationInFlight
	}
	if err := key.Validate(); err != nil {
		return err
	}

	resp, err := c.exchange(apdu.Command{
		Cla: apdu.Cla, Ins: apdu.InsStoreInit, Data: key.WireFields(), Le: apdu.LeAbsent,
	})
	if err != nil {
		return err
	}
	if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
		return statusErr(ErrInitRejected, out.SW)
	}

	c.op = &transfer{id: uuid.New(), dir: directionStore}
	c.log.Debug().Str("op", c.op.id.String()).Msg("store init accepted")
	return nil
}

// ContinueStore splits payload into chunks in original order and sends
// one CONTINUE per chunk. Any non-success status aborts the whole
// operation; restart from BeginStore.
func (c *Client) ContinueStore(payload []byte) error {
	op := c.op
	if op == nil || op.dir != directionStore {
		return ErrNoActiveOperation
	}

	for off := 0; off < len(payload); off += c.chunkSize {
		end := off + c.chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		resp, err := c.exchange(apdu.Command{
			Cla: apdu.Cla, Ins: apdu.InsStoreContinue, Data: payload[off:end], Le: apdu.LeAbsent,
		})
		if err != nil {
			c.abort()
			return err
		}
		if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
			c.abort()
			return statusErr(ErrChunkRejected, out.SW)
		}
		op.transferred += end - off
		c.log.Debug().Str("op", op.id.String()).
			Int("transferred", op.transferred).Int("total", len(payload)).
			Msg("store chunk accepted")
	}
	return nil
}

// FinalizeStore commits the record. Failure here does not retry the
// already-transferred bytes; the operation is not idempotent and must
// be restarted from BeginStore.
func (c *Client) FinalizeStore() error {
	op := c.op
	if op == nil || op.dir != directionStore {
		return ErrNoActiveOperation
	}
	c.op = nil

	resp, err := c.exchange(apdu.Command{
		Cla: apdu.Cla, Ins: apdu.InsStoreFinalize, Le: apdu.LeAbsent,
	})
	if err != nil {
		return err
	}
	if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
		return statusErr(ErrFinalizeFailed, out.SW)
	}
	c.log.Debug().Str("op", op.id.String()).Int("bytes", op.transferred).Msg("store committed")
	return nil
}

// Store runs the full store sequence for one record. A zero-length
// payload is valid: no CONTINUE exchanges, straight to FINALIZE.
func (c *Client) Store(key record.Key, payload []byte) error {
	if err := c.BeginStore(key); err != nil {
		return err
	}
	if err := c.ContinueStore(payload); err != nil {
		return err
	}
	return c.FinalizeStore()
}

// BeginRead opens a read context under env's authorization and returns
// the total record length the device reports. Rejection covers both
// "not found" and "signature invalid"; the wire does not say which, and
// neither does this client.
func (c *Client) BeginRead(env record.Envelope) (int, error) {
	if c.op != nil {
		return 0, ErrOperationInFlight
	}
	payload, err := env.InitPayload()
	if err != nil {
		return 0, err
	}

	resp, err := c.exchange(apdu.Command{
		Cla: apdu.Cla, Ins: apdu.InsReadInit, Data: payload, Le: 2,
	})
	if err != nil {
		return 0, err
	}
	if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
		return 0, statusErr(ErrInitRejected, out.SW)
	}
	if len(resp.Data) < 2 {
		return 0, statusErr(ErrMalformedResponse, resp.SW)
	}

	total := int(resp.Data[0])<<8 | int(resp.Data[1])
	c.op = &transfer{id: uuid.New(), dir: directionRead, total: total}
	c.log.Debug().Str("op", c.op.id.String()).Int("total", total).Msg("read init accepted")
	return total, nil
}

// ContinueRead drains the record. The loop ends when the device reports
// Success or when accumulated bytes reach the length from BeginRead,
// whichever first; the MoreData low-byte hint saturates past 255
// remaining bytes and is never trusted for termination.
func (c *Client) ContinueRead() ([]byte, error) {
	op := c.op
	if op == nil || op.dir != directionRead {
		return nil, ErrNoActiveOperation
	}
	if op.phase == phaseDrained {
		return cloneBytes(op.buf), nil
	}

	for op.transferred < op.total {
		le := c.readHint
		if remaining := op.total - op.transferred; remaining < le {
			le = remaining
		}
		resp, err := c.exchange(apdu.Command{
			Cla: apdu.Cla, Ins: apdu.InsReadContinue, Le: le,
		})
		if err != nil {
			c.abort()
			return nil, err
		}

		out := resp.Outcome()
		switch out.Kind {
		case apdu.OutcomeSuccess:
			op.buf = append(op.buf, resp.Data...)
			op.transferred += len(resp.Data)
			op.phase = phaseDrained
			c.log.Debug().Str("op", op.id.String()).
				Int("transferred", op.transferred).Int("total", op.total).
				Msg("read complete")
			return cloneBytes(op.buf), nil
		case apdu.OutcomeMoreData:
			if len(resp.Data) == 0 {
				// A continuation that moves no bytes would loop forever.
				c.abort()
				return nil, statusErr(ErrMalformedResponse, out.SW)
			}
			op.buf = append(op.buf, resp.Data...)
			op.transferred += len(resp.Data)
			c.log.Debug().Str("op", op.id.String()).
				Int("transferred", op.transferred).Int("total", op.total).
				Int("hint", out.Hint).
				Msg("read chunk received")
		default:
			c.abort()
			return nil, statusErr(ErrChunkRejected, out.SW)
		}
	}

	op.phase = phaseDrained
	return cloneBytes(op.buf), nil
}

// FinalizeRead closes the read context and returns the assembled
// payload. The device auto-resets after the last chunk, so a
// non-success status here is a warning, not an error: the collected
// bytes are returned either way.
func (c *Client) FinalizeRead() ([]byte, error) {
	op := c.op
	if op == nil || op.dir != directionRead {
		return nil, ErrNoActiveOperation
	}
	c.op = nil

	resp, err := c.exchange(apdu.Command{
		Cla: apdu.Cla, Ins: apdu.InsReadFinalize, Le: apdu.LeAbsent,
	})
	if err != nil {
		c.log.Warn().Str("op", op.id.String()).Err(err).Msg("read finalize exchange failed")
	} else if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
		c.log.Warn().Str("op", op.id.String()).
			Str("outcome", out.String()).
			Msg("read finalize returned non-success")
	}
	return cloneBytes(op.buf), nil
}

// Read runs the full read sequence under env's authorization.
func (c *Client) Read(env record.Envelope) ([]byte, error) {
	if _, err := c.BeginRead(env); err != nil {
		return nil, err
	}
	if _, err := c.ContinueRead(); err != nil {
		return nil, err
	}
	return c.FinalizeRead()
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
