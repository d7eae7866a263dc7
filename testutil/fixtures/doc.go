// Package fixtures provides test doubles for the external collaborators of the circulation engine
// and builders for commonly needed aggregates.
package fixtures
