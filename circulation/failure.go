package circulation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Failure is a business outcome that stopped an operation before anything was written.
// It matches its Kind via errors.Is and carries a machine code plus the arguments of its localized message.
type Failure struct {
	Kind   error
	Code   Code
	Args   []any
	Fields map[string][]Code
	detail string
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Code))

	if f.detail != "" {
		b.WriteString(": ")
		b.WriteString(f.detail)
	}

	for _, field := range slices.Sorted(maps.Keys(f.Fields)) {
		fmt.Fprintf(&b, " [%s: %v]", field, f.Fields[field])
	}

	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Kind
}

// IsBusinessOutcome reports whether the failure is an expected result for the caller
// rather than a fault that must abort the transaction.
func (f *Failure) IsBusinessOutcome() bool {
	return !errors.Is(f.Kind, ErrInventoryMissing)
}

// NotFound reports a missing aggregate.
func NotFound(code Code, entity string, id any) *Failure {
	return &Failure{
		Kind:   ErrNotFound,
		Code:   code,
		Args:   []any{fmt.Sprint(id)},
		detail: fmt.Sprintf("%s %v not found", entity, id),
	}
}

// ConflictingState reports an illegal transition. The message always names the current and the attempted state.
func ConflictingState(code Code, entity string, id uuid.UUID, current, attempted fmt.Stringer) *Failure {
	return &Failure{
		Kind: ErrConflictingState,
		Code: code,
		Args: []any{current.String(), attempted.String()},
		detail: fmt.Sprintf(
			"%s %s cannot change from %s to %s", entity, id, current, attempted,
		),
	}
}

// Encumbered reports a copy or card that is blocked by dependent records.
func Encumbered(code Code, entity string, id uuid.UUID) *Failure {
	return &Failure{
		Kind:   ErrEncumbered,
		Code:   code,
		Args:   []any{id.String()},
		detail: fmt.Sprintf("%s %s has dependent records", entity, id),
	}
}

// MissingPlacement reports a copy that cannot go InShelf because its title has no shelf.
func MissingPlacement(copyID, catalogItemID uuid.UUID) *Failure {
	return &Failure{
		Kind:   ErrMissingPlacement,
		Code:   CodeMissingPlacement,
		Args:   []any{copyID.String()},
		detail: fmt.Sprintf("copy %s: catalog item %s has no shelf", copyID, catalogItemID),
	}
}

// InventoryMissing reports a title whose copies exist without an inventory record.
// It is the one failure kind that is not a business outcome.
func InventoryMissing(catalogItemID uuid.UUID) *Failure {
	return &Failure{
		Kind:   ErrInventoryMissing,
		Code:   CodeInventoryMissing,
		Args:   []any{catalogItemID.String()},
		detail: fmt.Sprintf("catalog item %s has no inventory record", catalogItemID),
	}
}

// PaymentMismatch reports a transaction that does not verify against what the operation expects.
func PaymentMismatch(code Code, reason string) *Failure {
	return &Failure{
		Kind:   ErrPaymentMismatch,
		Code:   code,
		detail: reason,
	}
}

// Conflict reports a rule violation that is not a plain transition, such as extending a card too early.
func Conflict(code Code, detail string, args ...any) *Failure {
	return &Failure{
		Kind:   ErrConflictingState,
		Code:   code,
		Args:   args,
		detail: detail,
	}
}

// ValidationErrors collects field errors before they are turned into one ValidationFailed failure.
type ValidationErrors map[string][]Code

// Add records a failed rule for a field.
func (v ValidationErrors) Add(field string, code Code) {
	v[field] = append(v[field], code)
}

// Err returns nil if nothing was collected, otherwise a ValidationFailed failure carrying every field.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}

	return &Failure{
		Kind:   ErrValidationFailed,
		Code:   CodeValidationFailed,
		Fields: v,
	}
}

// BatchFailure rejects a whole batch and lists every member's errors.
type BatchFailure struct {
	Code  Code
	Items map[uuid.UUID][]error
}

func (b *BatchFailure) Error() string {
	keys := slices.SortedFunc(maps.Keys(b.Items), func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})

	parts := make([]string, 0, len(keys))
	for _, id := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", id, errors.Join(b.Items[id]...)))
	}

	return fmt.Sprintf("%s: %d item(s) rejected: %s", b.Code, len(keys), strings.Join(parts, "; "))
}

// Unwrap exposes every item error, so errors.Is(batchErr, ErrEncumbered) works.
func (b *BatchFailure) Unwrap() []error {
	all := make([]error, 0, len(b.Items))
	for _, errs := range b.Items {
		all = append(all, errs...)
	}

	return all
}

// BatchErrors collects per-item errors of a batch before deciding whether to reject it.
type BatchErrors map[uuid.UUID][]error

// Add records an error for one batch member.
func (b BatchErrors) Add(id uuid.UUID, err error) {
	b[id] = append(b[id], err)
}

// Err returns nil if every member passed, otherwise a BatchFailure with the given code.
func (b BatchErrors) Err(code Code) error {
	if len(b) == 0 {
		return nil
	}

	return &BatchFailure{Code: code, Items: b}
}

// IsBusinessOutcome reports whether err is an expected result to be returned to the caller.
// Anything else is a fault that should be logged and surfaced as an internal error.
func IsBusinessOutcome(err error) bool {
	var batch *BatchFailure
	if errors.As(err, &batch) {
		for _, e := range batch.Unwrap() {
			if !IsBusinessOutcome(e) {
				return false
			}
		}

		return true
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return failure.IsBusinessOutcome()
	}

	return false
}
