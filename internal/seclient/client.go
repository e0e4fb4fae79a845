package seclient

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dkrall/sevault/internal/apdu"
)

// Transport is the injected channel collaborator: one blocking
// command/response exchange. Discovery, connection, and applet
// selection happen behind it.
type Transport interface {
	Transmit(command []byte) ([]byte, error)
}

const (
	// DefaultChunkSize bounds store-side CONTINUE payloads.
	DefaultChunkSize = 200
	// DefaultReadHint is the per-exchange ceiling requested on read.
	DefaultReadHint = 240
)

// Client drives the record protocol over one exclusive channel. Not
// safe for concurrent use; concurrent sessions each need their own
// connection.
type Client struct {
	tr        Transport
	chunkSize int
	readHint  int
	log       zerolog.Logger

	// op is the single in-flight transfer, nil when idle. Chunk size
	// and read hint are configuration: set once, never mutated while
	// op is live.
	op *transfer

	cplc []byte
}

// Option configures a Client at construction.
type Option func(*Client)

// WithChunkSize overrides the store-side chunk size (1..255).
func WithChunkSize(n int) Option {
	return func(c *Client) { c.chunkSize = n }
}

// WithReadHint overrides the read-side per-exchange ceiling (1..255).
func WithReadHint(n int) Option {
	return func(c *Client) { c.readHint = n }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a client over tr.
func New(tr Transport, opts ...Option) (*Client, error) {
	c := &Client{
		tr:        tr,
		chunkSize: DefaultChunkSize,
		readHint:  DefaultReadHint,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.chunkSize < 1 || c.chunkSize > apdu.MaxData {
		return nil, fmt.Errorf("seclient: chunk size %d outside 1..%d", c.chunkSize, apdu.MaxData)
	}
	if c.readHint < 1 || c.readHint > apdu.MaxData {
		return nil, fmt.Errorf("seclient: read hint %d outside 1..%d", c.readHint, apdu.MaxData)
	}
	return c, nil
}

// exchange encodes cmd, performs the blocking exchange, and splits the
// response. Transport failure is fatal to the session; a response too
// short to carry a status word is a protocol violation.
func (c *Client) exchange(cmd apdu.Command) (apdu.Response, error) {
	raw, err := cmd.Encode()
	if err != nil {
		return apdu.Response{}, err
	}
	respRaw, err := c.tr.Transmit(raw)
	if err != nil {
		return apdu.Response{}, fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	resp, err := apdu.ParseResponse(respRaw)
	if err != nil {
		return apdu.Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp, nil
}
