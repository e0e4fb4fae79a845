// Package seclient owns the client side of the vault record protocol.
//
// Ownership boundary:
// - the chunked INIT/CONTINUE/FINALIZE transfer engine, both directions
// - per-operation state tracking and call-sequencing enforcement
// - the single-exchange fixed-width record operations
//
// One Client owns one exclusive channel. Exchanges are strictly
// synchronous and never retried here; a caller restarts a whole
// operation from its INIT when it wants another attempt.
package seclient
