package txn

import (
	"unsafe"

	"github.com/tidwall/btree"

	"orecstm/pkg/orec"
)

// State is where a Transaction sits in its lifecycle.
type State int

const (
	Active State = iota
	Committed
	Aborted
)

// Transaction is a per-goroutine descriptor: an ordered log of the
// addresses it has touched, each with the snapshot it first observed
// and the snapshot it would publish on commit. A Transaction is never
// safe to share across goroutines; exactly one goroutine may call its
// methods, from construction through Commit or Abort.
type Transaction struct {
	state    State
	ctx      *Context
	identity uint64
	log      []logEntry
}

// NewTransaction binds a new, Active transaction to ctx. Callers should
// immediately defer txn.Abort() so that a panic, an early return, or a
// forgotten Commit still leaves the transaction terminal. Abort does not
// release orecs; it is a no-op once the transaction is no longer
// Active, so the deferred call is always safe.
func NewTransaction(ctx *Context) *Transaction {
	return &Transaction{
		state:    Active,
		ctx:      ctx,
		identity: ctx.allocateIdentity(),
	}
}

// State reports the transaction's current lifecycle state.
func (t *Transaction) State() State {
	return t.state
}

// Read returns the word currently visible to this transaction at addr,
// populating the log from the orec table on first touch. It panics if
// the transaction is not Active — that is a programming error, not a
// runtime condition to recover from.
func (t *Transaction) Read(addr Address) (Word, error) {
	if t.state != Active {
		panic("orecstm: Read called on a non-active transaction")
	}

	i, err := t.ensure(addr)
	if err != nil {
		return 0, err
	}
	return t.log[i].new.Value, nil
}

// Write records word as the value addr should hold if this transaction
// commits. It panics if the transaction is not Active.
func (t *Transaction) Write(addr Address, word Word) error {
	if t.state != Active {
		panic("orecstm: Write called on a non-active transaction")
	}

	i, err := t.ensure(addr)
	if err != nil {
		return err
	}
	t.log[i].new.Value = word
	t.log[i].new.Version += orec.VersionStep
	return nil
}

// Commit runs the two-phase commit protocol: AcquireAll seizes every
// orec this transaction touched, at the version it last observed it
// at; if that succeeds, MakeAllChanges publishes every write and marks
// the transaction Committed. If acquisition fails, the transaction
// stays Active — every orec it touched has already been rolled back to
// its pre-acquisition version — and Commit returns ErrConsistency. The
// caller is expected to retry with a new transaction, or to Abort.
func (t *Transaction) Commit() error {
	if t.state != Active {
		panic("orecstm: Commit called on a non-active transaction")
	}

	if !t.AcquireAll() {
		return ErrConsistency
	}
	t.MakeAllChanges()
	return nil
}

// Abort discards the log without touching any orec: an Active
// transaction never holds one (I2). It is idempotent so that a deferred
// Abort following a successful Commit, or a second explicit call, is
// always safe.
func (t *Transaction) Abort() {
	if t.state != Active {
		return
	}
	t.state = Aborted
}

// ensure returns the log index for addr, appending a freshly resolved
// entry on first touch. Each address appears at most once in the log.
func (t *Transaction) ensure(addr Address) (int, error) {
	for i := range t.log {
		if t.log[i].addr == addr {
			return i, nil
		}
	}

	value, version, err := t.ctx.table.Resolve(addr)
	if err != nil {
		return 0, err
	}

	snap := Snapshot{Value: value, Version: version}
	t.log = append(t.log, logEntry{addr: addr, old: snap, new: snap})
	return len(t.log) - 1, nil
}

// acquisitionOrder returns the indices of t.log in the order
// AcquireAll should attempt them: insertion order by default, or
// ascending address order when the owning Context opted into
// WithOrderedAcquisition. Sorting by address makes two transactions
// that both touch the same addresses attempt acquisition in the same
// order, closing the livelock where each aborts the other.
func (t *Transaction) acquisitionOrder() []int {
	if !t.ctx.ordered {
		order := make([]int, len(t.log))
		for i := range t.log {
			order[i] = i
		}
		return order
	}

	type keyed struct {
		addr uintptr
		idx  int
	}
	tree := btree.NewBTreeG(func(a, b keyed) bool { return a.addr < b.addr })
	for i, e := range t.log {
		tree.Set(keyed{addr: uintptr(unsafe.Pointer(e.addr)), idx: i})
	}

	order := make([]int, 0, len(t.log))
	tree.Scan(func(item keyed) bool {
		order = append(order, item.idx)
		return true
	})
	return order
}

// AcquireAll attempts to seize the orec for every logged address, at
// the version this transaction last observed it at. On the first
// failure it rolls back every orec already acquired — restoring it to
// its pre-acquisition version via releaseToOld — and returns false.
// The contract: after AcquireAll returns false, every orec this
// transaction touched is back to where it started and t.state is still
// Active.
//
// AcquireAll and MakeAllChanges are exported, alongside Commit which
// calls both, so that callers needing to demonstrate or test the
// acquire-time contention window between them (see the package's
// tests and cmd/driver) can drive the two phases separately.
func (t *Transaction) AcquireAll() bool {
	order := t.acquisitionOrder()
	acquired := make([]int, 0, len(order))

	for _, i := range order {
		entry := t.log[i]
		result := t.ctx.table.Acquire(entry.addr, entry.old.Version, t.identity)
		if result != orec.AcquireSucceed {
			for _, j := range acquired {
				t.releaseToOld(t.log[j])
			}
			return false
		}
		acquired = append(acquired, i)
	}
	return true
}

// releaseToOld unconditionally restores entry's orec to the version
// this transaction observed before it tried to acquire it. It is used
// only by AcquireAll's rollback path, which must release orecs while
// the transaction is still logically Active — release, by contrast,
// requires state != Active, so rollback gets its own dedicated path
// rather than a state toggle.
func (t *Transaction) releaseToOld(entry logEntry) {
	t.ctx.table.Insert(entry.addr, entry.old.Version)
}

// release installs the version this transaction's final state calls
// for: the new, bumped version on a commit, or the original version on
// an abort. It requires the orec to currently be held by this
// transaction.
func (t *Transaction) release(entry logEntry) {
	if t.state == Active {
		panic("orecstm: release called while transaction is active")
	}
	if t.ctx.table.Find(entry.addr) != t.identity {
		panic("orecstm: release called on an orec this transaction does not own")
	}

	if t.state == Committed {
		t.ctx.table.Insert(entry.addr, entry.new.Version)
	} else {
		t.ctx.table.Insert(entry.addr, entry.old.Version)
	}
}

// MakeAllChanges publishes every write: for each logged entry it
// stores the new value into the address and then releases the orec.
// Storing before releasing guarantees that any transaction that later
// resolves the orec sees the new value before it sees the new version.
func (t *Transaction) MakeAllChanges() {
	t.state = Committed
	for _, entry := range t.log {
		*entry.addr = entry.new.Value
		t.release(entry)
	}
}
