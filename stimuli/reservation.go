package stimuli

// An AccessKind distinguishes read reservations from write reservations.
type AccessKind int

// The two access kinds.
const (
	AccessRead AccessKind = iota
	AccessWrite
)

// A ReservationTable tracks the addresses already claimed by pending accesses
// of each kind within one generation run. It only ever grows: no release
// operation exists, so long runs against small memories degrade toward
// exhaustion. The scoping is the composition layer's choice; the default
// pipeline shares one table across all masters.
type ReservationTable struct {
	reserved map[AccessKind]map[uint64]bool
}

// NewReservationTable creates an empty reservation table.
func NewReservationTable() *ReservationTable {
	return &ReservationTable{
		reserved: map[AccessKind]map[uint64]bool{
			AccessRead:  {},
			AccessWrite: {},
		},
	}
}

// Contains reports whether the address is already reserved for the kind.
func (t *ReservationTable) Contains(kind AccessKind, addr uint64) bool {
	return t.reserved[kind][addr]
}

// Reserve claims the address for the kind for the rest of the run.
func (t *ReservationTable) Reserve(kind AccessKind, addr uint64) {
	t.reserved[kind][addr] = true
}

// Count returns the number of addresses reserved for the kind.
func (t *ReservationTable) Count(kind AccessKind) int {
	return len(t.reserved[kind])
}

// accessKindOf maps a transaction's write-enable bit to the reservation set
// it must check. Reads carry wen=1.
func accessKindOf(wen bool) AccessKind {
	if wen {
		return AccessRead
	}

	return AccessWrite
}
