package txn

import (
	"sync/atomic"

	"orecstm/pkg/orec"
)

// Context owns one orec table and the identity counter every
// transaction created against it draws from. Transactions bound to one
// Context contend with each other; distinct Contexts are independent
// universes that never see each other's orecs.
//
// A Context must outlive every Transaction built from it. It is not
// copied after first use.
type Context struct {
	table        *orec.OrecTable
	nextIdentity atomic.Uint64 // last identity handed out; starts at 0 so the first is 2
	ordered      bool
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithOrderedAcquisition makes every Transaction created from this
// Context sort its log by address before AcquireAll, instead of
// acquiring in touch order. This avoids the livelock where two
// transactions that both touch the same two addresses in opposite
// orders repeatedly abort each other; see the design notes for detail.
func WithOrderedAcquisition() Option {
	return func(c *Context) {
		c.ordered = true
	}
}

// NewContext builds a Context with a freshly seeded orec table.
func NewContext(opts ...Option) *Context {
	c := &Context{table: orec.NewOrecTable()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// allocateIdentity hands out the next even identity token. Identities
// are process-unique within this Context for as long as it lives.
func (c *Context) allocateIdentity() uint64 {
	return c.nextIdentity.Add(2)
}
