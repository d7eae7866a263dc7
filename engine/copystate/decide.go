package copystate

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/inventory"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

// Snapshot is everything a copy decision reads.
type Snapshot struct {
	Copies       []circulation.CopyView
	CatalogItems []circulation.CatalogItem
	Records      []circulation.InventoryRecord
}

type action uint8

const (
	skip action = iota
	update
	remove
)

// ruling is the verdict of a rule on one copy.
type ruling struct {
	action action
	next   circulation.Copy
	delta  inventory.Delta
	errs   []error
}

type rule func(view circulation.CopyView, item *circulation.CatalogItem) ruling

type outcomeCodes struct {
	single circulation.Code
	many   circulation.Code
}

// trashState names the trash lifecycle of a copy in ConflictingState messages.
type trashState string

func (s trashState) String() string { return string(s) }

const (
	notInTrash trashState = "NotInTrash"
	deleted    trashState = "Deleted"
)

// DecideStatusUpdate decides a direct status change of the requested copies.
func DecideStatusUpdate(requested []uuid.UUID, target circulation.CopyStatus, snapshot Snapshot) shell.Decision {
	if err := validateSelection(requested); err != nil {
		return shell.ErrorDecision(err)
	}

	if target == 0 {
		return shell.ErrorDecision(fieldError("status", circulation.CodeFieldRequired))
	}

	return decideRange(requested, snapshot, statusRule(target), outcomeCodes{
		single: circulation.CodeCopyUpdated,
		many:   circulation.CodeCopiesUpdated,
	})
}

func statusRule(target circulation.CopyStatus) rule {
	return func(view circulation.CopyView, item *circulation.CatalogItem) ruling {
		current := view.Status

		if !target.IsDirectlySettable() {
			return reject(circulation.ConflictingState(circulation.CodeCopyStatusConflict, "copy", view.ID, current, target))
		}

		if view.IsDeleted {
			return reject(circulation.ConflictingState(circulation.CodeCopyInTrash, "copy", view.ID, current, target))
		}

		if current == target {
			return ruling{action: skip}
		}

		var errs []error

		if view.IsEncumbered() {
			errs = append(errs, circulation.Encumbered(circulation.CodeCopyEncumbered, "copy", view.ID))
		}

		if !current.CanTransitionTo(target) {
			errs = append(errs, circulation.ConflictingState(circulation.CodeCopyStatusConflict, "copy", view.ID, current, target))
		}

		if target == circulation.CopyInShelf {
			switch {
			case item == nil:
				errs = append(errs, circulation.NotFound(circulation.CodeCatalogItemNotFound, "catalog item", view.CatalogItemID))
			case !item.HasPlacement():
				errs = append(errs, circulation.MissingPlacement(view.ID, view.CatalogItemID))
			}
		}

		if len(errs) > 0 {
			return ruling{errs: errs}
		}

		next := view.Copy
		next.Status = target

		return ruling{action: update, next: next, delta: inventory.Delta{Available: inShelfDelta(current, target)}}
	}
}

// DecideSoftDelete moves the requested copies into the trash. A trashed copy is OutOfShelf and no longer counted.
func DecideSoftDelete(requested []uuid.UUID, snapshot Snapshot) shell.Decision {
	if err := validateSelection(requested); err != nil {
		return shell.ErrorDecision(err)
	}

	return decideRange(requested, snapshot, softDeleteRule, outcomeCodes{
		single: circulation.CodeCopySoftDeleted,
		many:   circulation.CodeCopiesSoftDeleted,
	})
}

func softDeleteRule(view circulation.CopyView, _ *circulation.CatalogItem) ruling {
	if view.IsDeleted {
		return ruling{action: skip}
	}

	if view.IsEncumbered() {
		return reject(circulation.Encumbered(circulation.CodeCopyEncumbered, "copy", view.ID))
	}

	next := view.Copy
	next.IsDeleted = true
	next.Status = circulation.CopyOutOfShelf

	return ruling{
		action: update,
		next:   next,
		delta: inventory.Delta{
			Available: inShelfDelta(view.Status, circulation.CopyOutOfShelf),
			Total:     -1,
		},
	}
}

// DecideUndoDelete restores the requested copies from the trash. They come back OutOfShelf.
func DecideUndoDelete(requested []uuid.UUID, snapshot Snapshot) shell.Decision {
	if err := validateSelection(requested); err != nil {
		return shell.ErrorDecision(err)
	}

	return decideRange(requested, snapshot, undoDeleteRule, outcomeCodes{
		single: circulation.CodeCopyRestored,
		many:   circulation.CodeCopiesRestored,
	})
}

func undoDeleteRule(view circulation.CopyView, _ *circulation.CatalogItem) ruling {
	if !view.IsDeleted {
		return ruling{action: skip}
	}

	if view.IsEncumbered() {
		return reject(circulation.Encumbered(circulation.CodeCopyEncumbered, "copy", view.ID))
	}

	next := view.Copy
	next.IsDeleted = false
	next.Status = circulation.CopyOutOfShelf

	return ruling{action: update, next: next, delta: inventory.Delta{Total: +1}}
}

// DecideHardDelete removes trashed copies for good.
// Only a copy in the trash, without dependent records and with nothing but its initial condition entry qualifies.
func DecideHardDelete(requested []uuid.UUID, snapshot Snapshot) shell.Decision {
	if err := validateSelection(requested); err != nil {
		return shell.ErrorDecision(err)
	}

	return decideRange(requested, snapshot, hardDeleteRule, outcomeCodes{
		single: circulation.CodeCopyDeleted,
		many:   circulation.CodeCopiesDeleted,
	})
}

func hardDeleteRule(view circulation.CopyView, _ *circulation.CatalogItem) ruling {
	if !view.IsDeleted {
		return reject(circulation.ConflictingState(circulation.CodeCopyDeletionConflict, "copy", view.ID, notInTrash, deleted))
	}

	var errs []error

	if view.IsEncumbered() {
		errs = append(errs, circulation.Encumbered(circulation.CodeCopyEncumbered, "copy", view.ID))
	}

	if view.ConditionEntries > 1 {
		errs = append(errs, circulation.Encumbered(circulation.CodeCopyHasDependentHistory, "copy", view.ID))
	}

	if len(errs) > 0 {
		return ruling{errs: errs}
	}

	return ruling{action: remove, next: view.Copy}
}

func decideRange(requested []uuid.UUID, snapshot Snapshot, decide rule, codes outcomeCodes) shell.Decision {
	views := make(map[uuid.UUID]circulation.CopyView, len(snapshot.Copies))
	for _, view := range snapshot.Copies {
		views[view.ID] = view
	}

	items := make(map[uuid.UUID]circulation.CatalogItem, len(snapshot.CatalogItems))
	for _, item := range snapshot.CatalogItems {
		items[item.ID] = item
	}

	batchErrs := circulation.BatchErrors{}
	rulings := make([]ruling, 0, len(requested))

	for _, id := range requested {
		view, ok := views[id]
		if !ok {
			batchErrs.Add(id, circulation.NotFound(circulation.CodeCopyNotFound, "copy", id))
			continue
		}

		var item *circulation.CatalogItem
		if found, ok := items[view.CatalogItemID]; ok {
			item = &found
		}

		r := decide(view, item)
		for _, err := range r.errs {
			batchErrs.Add(id, err)
		}

		rulings = append(rulings, r)
	}

	if len(batchErrs) > 0 {
		return shell.ErrorDecision(rejection(requested, batchErrs))
	}

	ledger := inventory.NewLedger(snapshot.Records)
	changes := circulation.NewChangeSet()
	changed := 0

	for _, r := range rulings {
		switch r.action {
		case update:
			changes.UpdateCopy(r.next)
		case remove:
			changes.DeleteCopy(r.next)
		default:
			continue
		}

		changed++
		ledger.ApplyDelta(r.next.CatalogItemID, r.delta.Available, r.delta.Total)
	}

	if changed == 0 {
		return shell.IdempotentDecision(circulation.Outcome{Code: circulation.CodeNoChanges})
	}

	if err := ledger.Stage(changes); err != nil {
		return shell.ErrorDecision(err)
	}

	if len(requested) == 1 {
		return shell.SuccessDecision(changes, circulation.Outcome{Code: codes.single})
	}

	return shell.SuccessDecision(changes, circulation.Outcome{Code: codes.many, Args: []any{changed}})
}

// rejection reports a single-copy request by its own failure and a batch by the per-copy error map.
func rejection(requested []uuid.UUID, batchErrs circulation.BatchErrors) error {
	if len(requested) == 1 && len(batchErrs[requested[0]]) == 1 {
		return batchErrs[requested[0]][0]
	}

	return batchErrs.Err(circulation.CodeBatchRejected)
}

func reject(err error) ruling {
	return ruling{errs: []error{err}}
}

func inShelfDelta(from, to circulation.CopyStatus) int {
	switch {
	case !from.IsInShelf() && to.IsInShelf():
		return +1
	case from.IsInShelf() && !to.IsInShelf():
		return -1
	default:
		return 0
	}
}

func validateSelection(requested []uuid.UUID) error {
	if len(requested) == 0 {
		return fieldError("copyIds", circulation.CodeFieldEmptySelection)
	}

	seen := make(map[uuid.UUID]bool, len(requested))
	for _, id := range requested {
		if seen[id] {
			return fieldError("copyIds", circulation.CodeFieldDuplicate)
		}

		seen[id] = true
	}

	return nil
}

func fieldError(field string, code circulation.Code) error {
	v := circulation.ValidationErrors{}
	v.Add(field, code)

	return v.Err()
}

// AddCopiesCommand registers new copies of a catalog title.
type AddCopiesCommand struct {
	CatalogItemID uuid.UUID
	Barcodes      []string
	Condition     string
	Note          string
}

// BuildAddCopiesCommand creates an AddCopiesCommand.
func BuildAddCopiesCommand(catalogItemID uuid.UUID, barcodes []string, condition, note string) AddCopiesCommand {
	return AddCopiesCommand{
		CatalogItemID: catalogItemID,
		Barcodes:      barcodes,
		Condition:     condition,
		Note:          note,
	}
}

const (
	maxBarcodeLength = 50
	defaultCondition = "new"
)

// AddCopiesSnapshot is what DecideAddCopies reads.
type AddCopiesSnapshot struct {
	CatalogItem *circulation.CatalogItem
	Existing    []circulation.Copy
	Record      *circulation.InventoryRecord
}

// DecideAddCopies creates the copies OutOfShelf with one condition entry each.
// The inventory record is created with the first copies of a title. A title that already has copies but no
// record is an inventory invariant breach and fails with InventoryMissing.
func DecideAddCopies(
	command AddCopiesCommand,
	snapshot AddCopiesSnapshot,
	now time.Time,
	newID func() uuid.UUID,
) shell.Decision {
	if err := validateBarcodes(command.Barcodes, snapshot.Existing); err != nil {
		return shell.ErrorDecision(err)
	}

	if snapshot.CatalogItem == nil {
		return shell.ErrorDecision(circulation.NotFound(circulation.CodeCatalogItemNotFound, "catalog item", command.CatalogItemID))
	}

	var records []circulation.InventoryRecord
	if snapshot.Record != nil {
		records = append(records, *snapshot.Record)
	}

	ledger := inventory.NewLedger(records)
	if !ledger.Has(command.CatalogItemID) && len(snapshot.Existing) == 0 {
		ledger.Create(command.CatalogItemID)
	}

	condition := command.Condition
	if condition == "" {
		condition = defaultCondition
	}

	changes := circulation.NewChangeSet()

	for _, barcode := range command.Barcodes {
		copyID := newID()
		changes.AddCopy(circulation.NewCopy{
			Copy: circulation.Copy{
				ID:            copyID,
				CatalogItemID: command.CatalogItemID,
				Barcode:       barcode,
				Status:        circulation.CopyOutOfShelf,
			},
			Condition: circulation.ConditionHistory{
				ID:         newID(),
				CopyID:     copyID,
				Condition:  condition,
				Note:       command.Note,
				RecordedAt: now,
			},
		})
	}

	ledger.ApplyDelta(command.CatalogItemID, 0, len(command.Barcodes))

	if err := ledger.Stage(changes); err != nil {
		return shell.ErrorDecision(err)
	}

	return shell.SuccessDecision(changes, circulation.Outcome{
		Code: circulation.CodeCopiesAdded,
		Args: []any{len(command.Barcodes)},
	})
}

func validateBarcodes(barcodes []string, existing []circulation.Copy) error {
	v := circulation.ValidationErrors{}

	if len(barcodes) == 0 {
		v.Add("barcodes", circulation.CodeFieldEmptySelection)
	}

	taken := make(map[string]bool, len(existing)+len(barcodes))
	for _, c := range existing {
		taken[c.Barcode] = true
	}

	for _, barcode := range barcodes {
		switch {
		case barcode == "":
			v.Add("barcodes", circulation.CodeFieldRequired)
		case len(barcode) > maxBarcodeLength:
			v.Add("barcodes", circulation.CodeFieldTooLong)
		case taken[barcode]:
			v.Add("barcodes", circulation.CodeFieldDuplicate)
		}

		taken[barcode] = true
	}

	return v.Err()
}
