package cardsim

import (
	"github.com/dkrall/sevault/internal/apdu"
)

const defaultMaxReadChunk = 240

// Chunked simulates the chunked vault applet: variable-length records
// moved through INIT/CONTINUE/FINALIZE in both directions.
type Chunked struct {
	// MaxRecords caps storage; zero means 8.
	MaxRecords int
	// MaxReadChunk caps bytes per read CONTINUE; zero means 240.
	MaxReadChunk int
	// Verify gates read access. Nil accepts any signature.
	Verify VerifyFunc
	// CPLC is returned for the production-data fetch when non-nil.
	CPLC []byte

	records map[string][]byte
	order   []string

	storeKey string
	storeBuf []byte
	storing  bool

	readBuf []byte
	readOff int
	reading bool
}

func NewChunked() *Chunked {
	return &Chunked{records: make(map[string][]byte)}
}

func (c *Chunked) maxRecords() int {
	if c.MaxRecords > 0 {
		return c.MaxRecords
	}
	return 8
}

func (c *Chunked) maxReadChunk() int {
	if c.MaxReadChunk > 0 {
		return c.MaxReadChunk
	}
	return defaultMaxReadChunk
}

// Transmit dispatches one raw command frame.
func (c *Chunked) Transmit(raw []byte) ([]byte, error) {
	cmd, err := parseCommand(raw)
	if err != nil {
		return nil, err
	}
	if cmd.cla == 0x00 && cmd.ins == 0xA4 {
		return swOnly(apdu.SWSuccess), nil
	}
	if cmd.cla != apdu.Cla {
		return swOnly(apdu.SWUnknown), nil
	}
	switch cmd.ins {
	case apdu.InsStoreInit:
		return c.storeInit(cmd), nil
	case apdu.InsStoreContinue:
		return c.storeContinue(cmd), nil
	case apdu.InsStoreFinalize:
		return c.storeFinalize(), nil
	case apdu.InsReadInit:
		return c.readInit(cmd), nil
	case apdu.InsReadContinue:
		return c.readContinue(cmd), nil
	case apdu.InsReadFinalize:
		return c.readFinalize(), nil
	case 0xCA:
		return c.cplc(), nil
	default:
		return swOnly(apdu.SWUnknown), nil
	}
}

func (c *Chunked) busy() bool { return c.storing || c.reading }

func (c *Chunked) storeInit(cmd command) []byte {
	if c.busy() {
		return swOnly(apdu.SWConditionsUnmet)
	}
	fields, ok := parsePrefixed(cmd.data, 2)
	if !ok || len(fields[0]) == 0 || len(fields[1]) == 0 {
		return swOnly(apdu.SWWrongLength)
	}
	keyEnc := string(cmd.data)
	if _, exists := c.records[keyEnc]; exists {
		return swOnly(apdu.SWConditionsUnmet)
	}
	if len(c.records) >= c.maxRecords() {
		return swOnly(apdu.SWFileFull)
	}
	c.storing = true
	c.storeKey = keyEnc
	c.storeBuf = nil
	return swOnly(apdu.SWSuccess)
}

func (c *Chunked) storeContinue(cmd command) []byte {
	if !c.storing {
		return swOnly(apdu.SWConditionsUnmet)
	}
	c.storeBuf = append(c.storeBuf, cmd.data...)
	return swOnly(apdu.SWSuccess)
}

func (c *Chunked) storeFinalize() []byte {
	if !c.storing {
		return swOnly(apdu.SWConditionsUnmet)
	}
	c.records[c.storeKey] = c.storeBuf
	c.order = append(c.order, c.storeKey)
	c.storing = false
	c.storeKey = ""
	c.storeBuf = nil
	return swOnly(apdu.SWSuccess)
}

func (c *Chunked) readInit(cmd command) []byte {
	if c.busy() {
		return swOnly(apdu.SWConditionsUnmet)
	}
	fields, ok := parsePrefixed(cmd.data, 3)
	if !ok {
		return swOnly(apdu.SWWrongLength)
	}
	username, address, sig := fields[0], fields[1], fields[2]

	keyEnc := make([]byte, 0, 2+len(username)+len(address))
	keyEnc = append(keyEnc, byte(len(username)))
	keyEnc = append(keyEnc, username...)
	keyEnc = append(keyEnc, byte(len(address)))
	keyEnc = append(keyEnc, address...)

	payload, exists := c.records[string(keyEnc)]
	authBytes := append(append([]byte(nil), username...), address...)
	authorized := c.Verify == nil || c.Verify(authBytes, sig)
	// Missing record and bad signature share one status word so the
	// response is not an existence oracle.
	if !exists || !authorized {
		return swOnly(apdu.SWSecurityStatus)
	}

	c.reading = true
	c.readBuf = payload
	c.readOff = 0
	total := len(payload)
	return respond([]byte{byte(total >> 8), byte(total & 0xFF)}, apdu.SWSuccess)
}

func (c *Chunked) readContinue(cmd command) []byte {
	if !c.reading {
		return swOnly(apdu.SWConditionsUnmet)
	}
	le := cmd.le
	if le <= 0 {
		le = 256
	}
	n := min(min(le, c.maxReadChunk()), len(c.readBuf)-c.readOff)
	chunk := c.readBuf[c.readOff : c.readOff+n]
	c.readOff += n

	remaining := len(c.readBuf) - c.readOff
	if remaining == 0 {
		// Auto-reset after the last chunk; FINALIZE afterwards is a
		// no-context warning, like the hardware.
		c.reading = false
		c.readBuf = nil
		c.readOff = 0
		return respond(chunk, apdu.SWSuccess)
	}
	hint := min(remaining, 255)
	return respond(chunk, apdu.SWMoreDataPrefix|uint16(hint))
}

func (c *Chunked) readFinalize() []byte {
	if !c.reading {
		return swOnly(apdu.SWConditionsUnmet)
	}
	c.reading = false
	c.readBuf = nil
	c.readOff = 0
	return swOnly(apdu.SWSuccess)
}

func (c *Chunked) cplc() []byte {
	if c.CPLC == nil {
		return swOnly(apdu.SWUnknown)
	}
	data := append([]byte{0x9F, 0x7F, byte(len(c.CPLC))}, c.CPLC...)
	return respond(data, apdu.SWSuccess)
}

// RecordCount reports stored records, for test assertions.
func (c *Chunked) RecordCount() int { return len(c.records) }
