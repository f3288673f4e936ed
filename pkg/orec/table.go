package orec

import "unsafe"

// TableSize is the fixed number of orec slots in an OrecTable, matching
// the reference C++ implementation. It never grows: distinct addresses
// are allowed to alias onto the same slot, trading a modest amount of
// false contention for a bounded table.
const TableSize = 256

// OrecTable is a fixed-size array of orecs indexed by a deliberately
// cheap hash of the address. Collisions are intended, not a bug: two
// unrelated addresses mapped to the same slot will serialize against
// each other, but correctness never depends on the hash being good.
type OrecTable struct {
	records [TableSize]Orec
}

// NewOrecTable builds a table with every slot seeded to VersionFirst.
// The zero value of OrecTable is not usable: its word fields would
// read as 0, which is even and therefore indistinguishable from an
// identity.
func NewOrecTable() *OrecTable {
	t := &OrecTable{}
	for i := range t.records {
		t.records[i].word.Store(VersionFirst)
	}
	return t
}

func index(addr Address) int {
	// FIXME(orec): this is deliberately the cheapest hash that spreads
	// consecutive word-aligned addresses across slots; it is not meant
	// to be collision-resistant.
	return int((uintptr(unsafe.Pointer(addr)) >> 3) % TableSize)
}

// Find returns a point-in-time copy of the word held by addr's orec.
func (t *OrecTable) Find(addr Address) uint64 {
	return t.records[index(addr)].Word()
}

// Insert releases addr's orec to newWord directly. It is used by the
// transaction's release path and by its rollback path.
func (t *OrecTable) Insert(addr Address, newWord uint64) {
	t.records[index(addr)].Release(newWord)
}

// Acquire delegates to the orec addr hashes to.
func (t *OrecTable) Acquire(addr Address, prev, next uint64) AcquireResult {
	return t.records[index(addr)].Acquire(prev, next)
}

// Resolve delegates to the orec addr hashes to.
func (t *OrecTable) Resolve(addr Address) (Word, uint64, error) {
	return t.records[index(addr)].Resolve(addr)
}
