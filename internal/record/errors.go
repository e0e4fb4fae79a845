package record

import "errors"

var (
	ErrInvalidKey       = errors.New("record: invalid key")
	ErrSignatureTooLong = errors.New("record: signature exceeds one-byte length field")
	ErrFieldTooLong     = errors.New("record: field exceeds fixed width")
)
