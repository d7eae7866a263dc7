// Package reconciliation applies the time-driven transitions of library cards and borrow requests.
//
// A single Scheduler per deployment polls the store on a fixed interval. Every tick re-queries current
// state, so a missed tick is picked up by the next one and running a tick twice writes nothing the second time.
package reconciliation
