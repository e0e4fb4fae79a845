package transport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ebfe/scard"

	"github.com/dkrall/sevault/internal/apdu"
)

var (
	ErrNoReader     = errors.New("transport: no smart card reader available")
	ErrSelectFailed = errors.New("transport: applet selection failed")
)

// Reader is the PCSC channel to a card. One Reader is one exclusive
// connection; it must not be shared across concurrent sessions.
type Reader struct {
	ctx  *scard.Context
	card *scard.Card
}

// Connect establishes a PCSC context, picks a reader (first whose name
// contains hint, or the first available when hint is empty), connects,
// and selects the applet identified by aid.
func Connect(hint string, aid []byte) (*Reader, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("transport: establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("transport: list readers: %w", err)
	}
	name, err := pickReader(readers, hint)
	if err != nil {
		ctx.Release()
		return nil, err
	}

	card, err := ctx.Connect(name, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("transport: connect %q: %w", name, err)
	}

	r := &Reader{ctx: ctx, card: card}
	if err := r.selectApplet(aid); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func pickReader(readers []string, hint string) (string, error) {
	if len(readers) == 0 {
		return "", ErrNoReader
	}
	if hint == "" {
		return readers[0], nil
	}
	for _, name := range readers {
		if strings.Contains(name, hint) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no reader matching %q", ErrNoReader, hint)
}

func (r *Reader) selectApplet(aid []byte) error {
	raw, err := apdu.Select(aid).Encode()
	if err != nil {
		return err
	}
	respRaw, err := r.card.Transmit(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSelectFailed, err)
	}
	resp, err := apdu.ParseResponse(respRaw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSelectFailed, err)
	}
	if resp.SW != apdu.SWSuccess {
		return fmt.Errorf("%w: status 0x%04X", ErrSelectFailed, resp.SW)
	}
	return nil
}

// Transmit performs one blocking exchange.
func (r *Reader) Transmit(command []byte) ([]byte, error) {
	return r.card.Transmit(command)
}

// Close disconnects the card and releases the context.
func (r *Reader) Close() error {
	var firstErr error
	if r.card != nil {
		if err := r.card.Disconnect(scard.LeaveCard); err != nil {
			firstErr = err
		}
		r.card = nil
	}
	if r.ctx != nil {
		if err := r.ctx.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.ctx = nil
	}
	return firstErr
}
