// Package inventory maintains the per-title availability counters.
//
// A Ledger stages the counter changes of one operation: callers report signed deltas per catalog item,
// and Stage writes one InventoryRecord update plus the matching CanBorrow flag per title into the ChangeSet
// that also carries the copy writes. The counters are therefore never committed apart from the copy
// status changes they describe.
//
// Service offers the operations that run on their own: a full recount and an availability lookup.
package inventory
