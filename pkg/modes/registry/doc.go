// Package registry is the single place that knows about every mode's
// on-disk state document and arbitrates mutual exclusion between them. It
// exists to break the circular dependency ralph/ultrawork/ultraqa would
// otherwise have on each other: each mode package depends only on registry,
// never on a sibling mode package directly.
package registry
