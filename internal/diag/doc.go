// Package diag defines the diagnostic model shared by the container decoders
// and the interpreters.
//
// # Purpose
//
//   - Provide deterministic, serialisable records for findings produced while
//     decoding containers and executing bytecode.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to storage or formatting.
//
// # Taxonomy
//
// Codes are grouped by how the finding is recovered:
//
//   - STR1xxx structural: bad signature or magic, lengths inconsistent with the
//     buffer. Clamped records are warnings; a failed load carries one error.
//   - SYM2xxx symbolic: out-of-range or wrong-tag symbol lookups. Recovered with
//     a typed placeholder and reported once per index.
//   - INT3xxx interpretive: unknown opcodes, malformed signatures, call depth
//     and repetition limits. Recovered by skipping or aborting one call.
//   - IO4xxx: reading bytes or the document cache.
//
// Spans are byte ranges into the container (see internal/source). Rendering
// lives in internal/diagfmt.
package diag
