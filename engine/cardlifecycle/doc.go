// Package cardlifecycle owns every write to library cards.
//
// The transition rules are pure functions over a card and the current business time.
// Service wraps them in read-decide-apply cycles for the interactive operations, and the
// reconciliation scheduler calls DecideExpiry, DecideUnsuspension, and DecideMissedPickUp
// directly to build its sweeps.
package cardlifecycle
