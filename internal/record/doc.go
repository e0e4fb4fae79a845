// Package record owns record addressing and read authorization.
//
// Ownership boundary:
// - record keys and their canonical bytes-to-authorize
// - length-prefixed wire encoding of key fields
// - authorization envelopes and the digest policy applied before signing
// - fixed-width field packing for the record applet variant
package record
