package txn

import "orecstm/pkg/orec"

// Word and Address are re-exported from orec so callers can write
// transactional code against this package alone.
type (
	Word    = orec.Word
	Address = orec.Address
)

// Snapshot is a (value, version) pair captured from a transacted
// address together with the orec version observed at that moment.
type Snapshot struct {
	Value   Word
	Version uint64
}

// logEntry is one line of a transaction's read/write log: the address
// touched, the snapshot first observed for it (Old, never mutated
// again), and the snapshot that would be published on commit (New,
// advanced by every Write).
type logEntry struct {
	addr Address
	old  Snapshot
	new  Snapshot
}
