package apdu

import "errors"

var (
	ErrDataTooLong   = errors.New("apdu: data exceeds one-byte length field")
	ErrInvalidLe     = errors.New("apdu: expected length out of range")
	ErrShortResponse = errors.New("apdu: response shorter than status word")
)
