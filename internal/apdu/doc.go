// Package apdu owns the command/response wire contract for one exchange
// with the secure element.
//
// Ownership boundary:
// - command frame encoding (CLA/INS/P1/P2/Lc/data/Le)
// - response splitting (data + trailing status word)
// - status word constants and the tagged exchange outcome
//
// The package performs no I/O; the exchange itself is driven by the
// client through an injected transport.
package apdu
