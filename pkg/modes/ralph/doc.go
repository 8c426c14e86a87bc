// Package ralph implements the self-referential Ralph iteration mode: it
// keeps re-invoking itself until explicitly cancelled, an iteration cap is
// reached, a driving PRD is fully complete, or the architect verification
// sub-loop approves a completion claim.
package ralph
