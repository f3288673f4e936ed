package txn

import "orecstm/pkg/orec"

// ErrConsistency is returned by Read, Write and Commit when a
// transaction has observed history it cannot linearize with. It is the
// same sentinel orec.Orec.Resolve and orec.OrecTable.Resolve fail with; it is
// re-exported here so callers never need to import the orec package
// directly just to check an error with errors.Is.
var ErrConsistency = orec.ErrConsistency
