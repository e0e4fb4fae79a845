// Package cardsim is an in-memory stand-in for the vault applets, used
// by tests in place of a physical card. It speaks raw command frames so
// the full client stack above it is exercised unchanged.
package cardsim

import "errors"

var errShortCommand = errors.New("cardsim: short command")

// command is the decoded view of one incoming frame.
type command struct {
	cla, ins byte
	data     []byte
	le       int // -1 when absent
}

func parseCommand(raw []byte) (command, error) {
	if len(raw) < 4 {
		return command{}, errShortCommand
	}
	cmd := command{cla: raw[0], ins: raw[1], le: -1}
	body := raw[4:]
	if len(body) == 0 {
		return cmd, nil
	}
	lc := int(body[0])
	body = body[1:]
	if lc > len(body) {
		return command{}, errShortCommand
	}
	cmd.data = body[:lc]
	if len(body) > lc {
		cmd.le = int(body[lc])
	}
	return cmd, nil
}

func respond(data []byte, sw uint16) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, data...)
	out = append(out, byte(sw>>8), byte(sw&0xFF))
	return out
}

func swOnly(sw uint16) []byte { return respond(nil, sw) }

// parsePrefixed pulls count one-byte-length-prefixed fields from data.
func parsePrefixed(data []byte, count int) ([][]byte, bool) {
	fields := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < 1 {
			return nil, false
		}
		n := int(data[0])
		data = data[1:]
		if n > len(data) {
			return nil, false
		}
		fields = append(fields, data[:n])
		data = data[n:]
	}
	if len(data) != 0 {
		return nil, false
	}
	return fields, true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// VerifyFunc checks a signature over the canonical auth bytes. A nil
// VerifyFunc accepts everything, matching applets that authorize by
// possession.
type VerifyFunc func(authBytes, signature []byte) bool
