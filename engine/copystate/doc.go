// Package copystate implements the status machine of physical copies.
//
// Staff may move a copy between OutOfShelf and InShelf, put it into the trash, restore it, and finally
// delete it. Borrowed and Reserved are only reached through the borrowing workflow and are never a legal
// target here. Every change of InShelf membership emits one signed delta into an inventory.Ledger, and the
// summed deltas of a batch are staged once per title in the same ChangeSet as the copy writes.
//
// Batch operations are all-or-nothing: every member is checked, all violations are collected per copy,
// and the batch is rejected before anything is written if any member failed.
package copystate
