package orec

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOrecTableSeedsEveryOrecToVersionFirst(t *testing.T) {
	table := NewOrecTable()
	var x uint64
	assert.Equal(t, uint64(VersionFirst), table.Find(&x))
	for i := range table.records {
		assert.Equal(t, uint64(VersionFirst), table.records[i].Word())
	}
}

func TestResolveReturnsWordAndVersionWhenUnowned(t *testing.T) {
	table := NewOrecTable()
	x := uint64(42)

	value, version, err := table.Resolve(&x)
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), value)
	assert.Equal(t, uint64(VersionFirst), version)
}

func TestResolveFailsWhenOwned(t *testing.T) {
	table := NewOrecTable()
	x := uint64(42)

	result := table.Acquire(&x, VersionFirst, 2)
	assert.Equal(t, AcquireSucceed, result)

	_, _, err := table.Resolve(&x)
	assert.ErrorIs(t, err, ErrConsistency)
}

func TestAcquireFailsOnVersionMismatch(t *testing.T) {
	table := NewOrecTable()
	x := uint64(42)

	// Someone else already advanced the version past what we observed.
	table.Insert(&x, VersionFirst+VersionStep)

	result := table.Acquire(&x, VersionFirst, 2)
	assert.Equal(t, AcquireFailed, result)
}

func TestAcquireReturnsBusyWhenHeldByAnotherTransaction(t *testing.T) {
	table := NewOrecTable()
	x := uint64(42)

	assert.Equal(t, AcquireSucceed, table.Acquire(&x, VersionFirst, 2))
	assert.Equal(t, AcquireBusy, table.Acquire(&x, VersionFirst, 4))
}

func TestAcquireIsIdempotentForTheSameOwner(t *testing.T) {
	table := NewOrecTable()
	x := uint64(42)

	assert.Equal(t, AcquireSucceed, table.Acquire(&x, VersionFirst, 2))
	assert.Equal(t, AcquireSucceed, table.Acquire(&x, VersionFirst, 2))
}

func TestReleaseThenResolveObservesTheInstalledVersion(t *testing.T) {
	table := NewOrecTable()
	x := uint64(42)

	assert.Equal(t, AcquireSucceed, table.Acquire(&x, VersionFirst, 2))
	table.Insert(&x, VersionFirst+VersionStep)

	_, version, err := table.Resolve(&x)
	assert.NoError(t, err)
	assert.Equal(t, uint64(VersionFirst+VersionStep), version)
}

// TestConcurrentAcquisitionIsExclusive exercises the CAS path under real
// contention: of N goroutines racing to acquire the same orec from the
// same observed version, exactly one must succeed.
func TestConcurrentAcquisitionIsExclusive(t *testing.T) {
	table := NewOrecTable()
	x := uint64(42)

	const n = 64
	var wg sync.WaitGroup
	successes := make([]bool, n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			identity := uint64(2 * (i + 1))
			successes[i] = table.Acquire(&x, VersionFirst, identity) == AcquireSucceed
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
