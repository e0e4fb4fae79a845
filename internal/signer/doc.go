// Package signer provides the concrete signing backends behind the
// record authorization capability: a PEM key file, a secp256k1 key, and
// a thin remote signing service client.
package signer
