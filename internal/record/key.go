package record

import "fmt"

// Field width limits enforced before anything reaches the channel.
const (
	MaxUsernameLen = 32
	MaxAddressLen  = 64
)

// Key identifies one logical record on the device. Immutable once
// constructed; uniqueness is the device's concern.
type Key struct {
	Username []byte
	Address  []byte
}

// NewKey builds a key from identity strings.
func NewKey(username, address string) Key {
	return Key{Username: []byte(username), Address: []byte(address)}
}

func (k Key) Validate() error {
	if len(k.Username) == 0 || len(k.Username) > MaxUsernameLen {
		return fmt.Errorf("%w: username length %d (1..%d)", ErrInvalidKey, len(k.Username), MaxUsernameLen)
	}
	if len(k.Address) == 0 || len(k.Address) > MaxAddressLen {
		return fmt.Errorf("%w: address length %d (1..%d)", ErrInvalidKey, len(k.Address), MaxAddressLen)
	}
	return nil
}

// AuthBytes is the canonical bytes-to-authorize: username||address with
// no separators. The wire payload carries explicit length prefixes
// instead, so the receiving side never has to split this concatenation.
func (k Key) AuthBytes() []byte {
	out := make([]byte, 0, len(k.Username)+len(k.Address))
	out = append(out, k.Username...)
	out = append(out, k.Address...)
	return out
}

// WireFields encodes the key fields with one-byte length prefixes:
// [len(username)][username][len(address)][address].
func (k Key) WireFields() []byte {
	out := make([]byte, 0, 2+len(k.Username)+len(k.Address))
	out = appendPrefixed(out, k.Username)
	out = appendPrefixed(out, k.Address)
	return out
}

func appendPrefixed(dst, field []byte) []byte {
	dst = append(dst, byte(len(field)))
	return append(dst, field...)
}
