package apdu

// Instruction set for the chunked vault applet. Store and read each run
// INIT -> CONTINUE* -> FINALIZE under a dedicated instruction triple.
const (
	Cla byte = 0x80

	InsStoreInit     byte = 0x10
	InsStoreContinue byte = 0x11
	InsStoreFinalize byte = 0x12
	InsReadInit      byte = 0x20
	InsReadContinue  byte = 0x21
	InsReadFinalize  byte = 0x22
)

// Instruction set for the fixed-width record applet. Single-exchange
// operations, no chunking.
const (
	InsRecordStore  byte = 0x10
	InsRecordRead   byte = 0x20
	InsRecordDelete byte = 0x30
)

// MaxData is the largest data field one command frame can carry; the
// length prefix is a single byte. Larger payloads are the transfer
// engine's problem, never the codec's.
const MaxData = 255

// LeAbsent marks a command with no expected-response-length byte.
const LeAbsent = -1

// Command is one unencoded command frame.
type Command struct {
	Cla  byte
	Ins  byte
	P1   byte
	P2   byte
	Data []byte
	// Le is the expected response length, 0..255, or LeAbsent.
	Le int
}

// Encode serializes the command to raw frame bytes:
// [CLA INS P1 P2] then [Lc data...] when data is present, then the Le
// byte when requested. A data-less command with Le still carries Lc=0
// ahead of the Le byte so the two length fields stay unambiguous.
func (c Command) Encode() ([]byte, error) {
	if len(c.Data) > MaxData {
		return nil, ErrDataTooLong
	}
	if c.Le != LeAbsent && (c.Le < 0 || c.Le > 255) {
		return nil, ErrInvalidLe
	}

	out := make([]byte, 0, 4+1+len(c.Data)+1)
	out = append(out, c.Cla, c.Ins, c.P1, c.P2)
	switch {
	case len(c.Data) > 0:
		out = append(out, byte(len(c.Data)))
		out = append(out, c.Data...)
	case c.Le != LeAbsent:
		out = append(out, 0)
	}
	if c.Le != LeAbsent {
		out = append(out, byte(c.Le))
	}
	return out, nil
}

// Select builds the ISO applet-selection command for the given AID.
func Select(aid []byte) Command {
	return Command{Cla: 0x00, Ins: 0xA4, P1: 0x04, P2: 0x00, Data: aid, Le: LeAbsent}
}

// Response is one decoded response frame.
type Response struct {
	Data []byte
	SW   uint16
}

// ParseResponse splits the trailing two-byte status word from the data
// bytes preceding it. Data contents are never interpreted here.
func ParseResponse(raw []byte) (Response, error) {
	if len(raw) < 2 {
		return Response{}, ErrShortResponse
	}
	n := len(raw) - 2
	data := make([]byte, n)
	copy(data, raw[:n])
	sw := uint16(raw[n])<<8 | uint16(raw[n+1])
	return Response{Data: data, SW: sw}, nil
}
