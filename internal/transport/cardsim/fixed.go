package cardsim

import (
	"bytes"

	"github.com/dkrall/sevault/internal/apdu"
	"github.com/dkrall/sevault/internal/record"
)

type fixedRecord struct {
	username []byte // 32, hashed
	address  []byte // 64, padded
	message  []byte // 32, padded
}

// Fixed simulates the fixed-width record applet: single-exchange store,
// signature-gated read and delete.
type Fixed struct {
	// MaxRecords caps storage; zero means 8.
	MaxRecords int
	// Verify gates read and delete. Nil accepts any signature.
	Verify VerifyFunc

	records []fixedRecord
}

func NewFixed() *Fixed { return &Fixed{} }

func (f *Fixed) maxRecords() int {
	if f.MaxRecords > 0 {
		return f.MaxRecords
	}
	return 8
}

// Transmit dispatches one raw command frame.
func (f *Fixed) Transmit(raw []byte) ([]byte, error) {
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
	case apdu.InsRecordStore:
		return f.store(cmd), nil
	case apdu.InsRecordRead:
		return f.read(cmd), nil
	case apdu.InsRecordDelete:
		return f.delete(cmd), nil
	default:
		return swOnly(apdu.SWUnknown), nil
	}
}

const fixedKeyLen = record.FixedUsernameLen + record.FixedAddressLen

func (f *Fixed) store(cmd command) []byte {
	if len(cmd.data) != fixedKeyLen+record.FixedMessageLen {
		return swOnly(apdu.SWWrongLength)
	}
	if len(f.records) >= f.maxRecords() {
		return swOnly(apdu.SWFileFull)
	}
	rec := fixedRecord{
		username: append([]byte(nil), cmd.data[:record.FixedUsernameLen]...),
		address:  append([]byte(nil), cmd.data[record.FixedUsernameLen:fixedKeyLen]...),
		message:  append([]byte(nil), cmd.data[fixedKeyLen:]...),
	}
	f.records = append(f.records, rec)
	return respond([]byte{byte(len(f.records) - 1), byte(len(f.records))}, apdu.SWSuccess)
}

// locate parses key+signature, finds the record, and checks the
// signature over the packed key bytes.
func (f *Fixed) locate(cmd command) (int, uint16) {
	if len(cmd.data) < fixedKeyLen+record.MinSignatureLen ||
		len(cmd.data) > fixedKeyLen+record.MaxSignatureLen {
		return -1, apdu.SWWrongLength
	}
	keyBytes := cmd.data[:fixedKeyLen]
	sig := cmd.data[fixedKeyLen:]

	idx := -1
	for i, rec := range f.records {
		if bytes.Equal(rec.username, keyBytes[:record.FixedUsernameLen]) &&
			bytes.Equal(rec.address, keyBytes[record.FixedUsernameLen:]) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, apdu.SWRecordNotFound
	}
	if f.Verify != nil && !f.Verify(keyBytes, sig) {
		return -1, apdu.SWSecurityStatus
	}
	return idx, apdu.SWSuccess
}

func (f *Fixed) read(cmd command) []byte {
	idx, sw := f.locate(cmd)
	if sw != apdu.SWSuccess {
		return swOnly(sw)
	}
	return respond(f.records[idx].message, apdu.SWSuccess)
}

func (f *Fixed) delete(cmd command) []byte {
	idx, sw := f.locate(cmd)
	if sw != apdu.SWSuccess {
		return swOnly(sw)
	}
	f.records = append(f.records[:idx], f.records[idx+1:]...)
	return respond([]byte{byte(idx), byte(len(f.records))}, apdu.SWSuccess)
}

// RecordCount reports stored records, for test assertions.
func (f *Fixed) RecordCount() int { return len(f.records) }
