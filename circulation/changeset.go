package circulation

// ChangeSet collects every write of one operation so that an Applier can commit them in a single transaction.
//
// Updates and deletes carry the version that was read; the Applier only writes a row whose stored version
// still matches and fails the whole set with ErrConcurrencyConflict otherwise.
// Inserts and CanBorrowFlags are not version checked.
type ChangeSet struct {
	NewCopies            []NewCopy
	CopyUpdates          []Copy
	CopyDeletes          []Copy
	NewInventoryRecords  []InventoryRecord
	InventoryUpdates     []InventoryRecord
	CanBorrowFlags       []CanBorrowFlag
	CardUpdates          []LibraryCard
	RequestUpdates       []BorrowRequest
	NewDigitalBorrows    []DigitalBorrow
	DigitalBorrowUpdates []DigitalBorrow
	NewExtensions        []ExtensionHistory
	NewTransactions      []Transaction
}

// NewChangeSet returns an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{}
}

func (cs *ChangeSet) AddCopy(c NewCopy) {
	cs.NewCopies = append(cs.NewCopies, c)
}

func (cs *ChangeSet) UpdateCopy(c Copy) {
	cs.CopyUpdates = append(cs.CopyUpdates, c)
}

func (cs *ChangeSet) DeleteCopy(c Copy) {
	cs.CopyDeletes = append(cs.CopyDeletes, c)
}

func (cs *ChangeSet) AddInventoryRecord(r InventoryRecord) {
	cs.NewInventoryRecords = append(cs.NewInventoryRecords, r)
}

func (cs *ChangeSet) UpdateInventoryRecord(r InventoryRecord) {
	cs.InventoryUpdates = append(cs.InventoryUpdates, r)
}

func (cs *ChangeSet) SetCanBorrow(f CanBorrowFlag) {
	cs.CanBorrowFlags = append(cs.CanBorrowFlags, f)
}

func (cs *ChangeSet) UpdateCard(c LibraryCard) {
	cs.CardUpdates = append(cs.CardUpdates, c)
}

func (cs *ChangeSet) UpdateRequest(r BorrowRequest) {
	cs.RequestUpdates = append(cs.RequestUpdates, r)
}

func (cs *ChangeSet) AddDigitalBorrow(b DigitalBorrow) {
	cs.NewDigitalBorrows = append(cs.NewDigitalBorrows, b)
}

func (cs *ChangeSet) UpdateDigitalBorrow(b DigitalBorrow) {
	cs.DigitalBorrowUpdates = append(cs.DigitalBorrowUpdates, b)
}

func (cs *ChangeSet) AddExtension(e ExtensionHistory) {
	cs.NewExtensions = append(cs.NewExtensions, e)
}

func (cs *ChangeSet) AddTransaction(t Transaction) {
	cs.NewTransactions = append(cs.NewTransactions, t)
}

// Len returns the number of row writes in the set.
func (cs *ChangeSet) Len() int {
	return len(cs.NewCopies) + len(cs.CopyUpdates) + len(cs.CopyDeletes) +
		len(cs.NewInventoryRecords) + len(cs.InventoryUpdates) + len(cs.CanBorrowFlags) +
		len(cs.CardUpdates) + len(cs.RequestUpdates) +
		len(cs.NewDigitalBorrows) + len(cs.DigitalBorrowUpdates) + len(cs.NewExtensions) +
		len(cs.NewTransactions)
}

// IsEmpty reports whether there is nothing to apply.
func (cs *ChangeSet) IsEmpty() bool {
	return cs == nil || cs.Len() == 0
}
