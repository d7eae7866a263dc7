// Package circulation provides the core abstractions shared by every part of the
// circulation consistency engine.
//
// This package defines the aggregates (copies, inventory records, library cards,
// digital borrows), the closed status enums with their transition functions,
// the ChangeSet unit of work, the persistence and collaborator contracts,
// and the error taxonomy that every operation reports through.
//
// Key types:
//   - ChangeSet: All writes of one operation, applied atomically by an Applier
//   - Store: Reader plus Applier, implemented by postgresengine and memengine
//   - Failure: A typed business outcome carrying a machine code and parameters
//   - Response: The code plus localized message handed back to a caller
//
// Common usage pattern:
//
//	copies, err := store.CopiesByIDs(circulation.WithStrongConsistency(ctx), ids)
//	if err != nil {
//		// handle error
//	}
//
//	changes := circulation.NewChangeSet()
//	changes.UpdateCopy(updatedCopy)
//	_, err = store.Apply(ctx, changes)
//
//	response := circulation.Respond(messages, locale, circulation.CodeCopyUpdated, err)
package circulation
