package record

import (
	"crypto/sha256"
	"fmt"
)

// Fixed-width field layout for the record applet variant. Signatures
// are DER-encoded ECDSA, appended raw after the packed fields.
const (
	FixedUsernameLen = 32
	FixedAddressLen  = 64
	FixedMessageLen  = 32
	MinSignatureLen  = 8
	MaxSignatureLen  = 72
)

// HashUsername maps an identity string of any length to the fixed
// 32-byte username slot via SHA-256.
func HashUsername(username string) []byte {
	h := sha256.Sum256([]byte(username))
	return h[:]
}

// PadRight zero-pads b to width. Fields longer than the width are
// rejected rather than truncated.
func PadRight(b []byte, width int) ([]byte, error) {
	if len(b) > width {
		return nil, fmt.Errorf("%w: %d > %d", ErrFieldTooLong, len(b), width)
	}
	out := make([]byte, width)
	copy(out, b)
	return out, nil
}

// StripPadding removes trailing zero bytes from a fixed-width payload
// read back from the device.
//
// Known limitation: a genuine payload ending in zero bytes loses them
// here. The applet stores no length alongside the padded field, so the
// client cannot tell padding from data.
func StripPadding(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	out := make([]byte, end)
	copy(out, b[:end])
	return out
}

// FixedAuthBytes is the canonical bytes-to-authorize for the fixed
// variant: the packed username slot followed by the padded address.
func FixedAuthBytes(username string, address []byte) ([]byte, error) {
	addr, err := PadRight(address, FixedAddressLen)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, FixedUsernameLen+FixedAddressLen)
	out = append(out, HashUsername(username)...)
	out = append(out, addr...)
	return out, nil
}

// ValidateDER bounds-checks a DER signature for the fixed variant.
func ValidateDER(sig []byte) error {
	if len(sig) < MinSignatureLen || len(sig) > MaxSignatureLen {
		return fmt.Errorf("record: signature length %d outside %d..%d",
			len(sig), MinSignatureLen, MaxSignatureLen)
	}
	return nil
}
