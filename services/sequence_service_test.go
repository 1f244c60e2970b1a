package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/testutil"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAssignSupervisorPrefix_InRegistrationOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	alloc := NewSequenceAllocator(DBCounter{})
	ctx := context.Background()

	var got []string
	for i := 0; i < 3; i++ {
		user := testutil.CreateUser(t, db, fmt.Sprintf("sup%d", i), workflow.RoleSupervisor)
		prefix, err := alloc.AssignSupervisorPrefix(ctx, db, user.ID)
		require.NoError(t, err)
		got = append(got, prefix)
	}
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestAssignSupervisorPrefix_IsStable(t *testing.T) {
	db := testutil.NewTestDB(t)
	alloc := NewSequenceAllocator(DBCounter{})
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "sam", workflow.RoleSupervisor)

	first, err := alloc.AssignSupervisorPrefix(ctx, db, user.ID)
	require.NoError(t, err)
	second, err := alloc.AssignSupervisorPrefix(ctx, db, user.ID)
	require.NoError(t, err)

	assert.Equal(t, "A", first)
	assert.Equal(t, first, second)

	var counter models.SequenceCounter
	require.NoError(t, db.Where("scope = ?", scopeSupervisorPrefix).Take(&counter).Error)
	assert.EqualValues(t, 1, counter.Value, "a stored prefix must not consume another letter")
}

func TestAssignSupervisorPrefix_ContinuesAfterExistingPrefixes(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	// Supervisors assigned before the counter row existed
	for i, p := range []string{"A", "B"} {
		prefix := p
		require.NoError(t, db.Create(&models.User{
			Auth0ID: fmt.Sprintf("auth0|old%d", i),
			Name:    fmt.Sprintf("old%d", i),
			Email:   fmt.Sprintf("old%d@example.com", i),
			Role:    workflow.RoleSupervisor,
			Prefix:  &prefix,
		}).Error)
	}
	user := testutil.CreateUser(t, db, "new", workflow.RoleSupervisor)

	prefix, err := NewSequenceAllocator(DBCounter{}).AssignSupervisorPrefix(ctx, db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", prefix)
}

func TestAssignSupervisorPrefix_UnknownUser(t *testing.T) {
	db := testutil.NewTestDB(t)

	_, err := NewSequenceAllocator(DBCounter{}).AssignSupervisorPrefix(context.Background(), db, 999)
	assert.True(t, workflow.IsNotFound(err))
}

func TestNextRequestNumber_PerSupervisor(t *testing.T) {
	db := testutil.NewTestDB(t)
	alloc := NewSequenceAllocator(DBCounter{})
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", workflow.RoleSupervisor)
	bob := testutil.CreateUser(t, db, "bob", workflow.RoleSupervisor)

	next := func(id uint) string {
		number, _, err := alloc.NextRequestNumber(ctx, db, id)
		require.NoError(t, err)
		return number
	}

	assert.Equal(t, "A1", next(alice.ID))
	assert.Equal(t, "A2", next(alice.ID))
	assert.Equal(t, "B1", next(bob.ID))
	assert.Equal(t, "A3", next(alice.ID))
	assert.Equal(t, "B2", next(bob.ID))
}

func TestNextRequestNumber_RolledBackTransactionLeavesNoGap(t *testing.T) {
	db := testutil.NewTestDB(t)
	alloc := NewSequenceAllocator(DBCounter{})
	ctx := context.Background()
	sam := testutil.CreateUser(t, db, "sam", workflow.RoleSupervisor)

	_, _, err := alloc.NextRequestNumber(ctx, db, sam.ID)
	require.NoError(t, err)

	failed := fmt.Errorf("create failed")
	err = db.Transaction(func(tx *gorm.DB) error {
		_, _, err := alloc.NextRequestNumber(ctx, tx, sam.ID)
		require.NoError(t, err)
		return failed
	})
	require.ErrorIs(t, err, failed)

	number, seq, err := alloc.NextRequestNumber(ctx, db, sam.ID)
	require.NoError(t, err)
	assert.Equal(t, "A2", number)
	assert.Equal(t, 2, seq)
}

func TestNextOrderNumber_Global(t *testing.T) {
	db := testutil.NewTestDB(t)
	alloc := NewSequenceAllocator(DBCounter{})
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		number, seq, err := alloc.NextOrderNumber(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("PO-%04d", want), number)
		assert.EqualValues(t, want, seq)
	}
}

// drawConcurrently releases n goroutines at once, each taking one value from
// counter, and returns what they got.
func drawConcurrently(t *testing.T, db *gorm.DB, counter Counter, n int, seed SeedFunc) []int64 {
	t.Helper()

	start := make(chan struct{})
	values := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			values[i], errs[i] = counter.Next(context.Background(), db, "load", seed)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	return values
}

func distinct(values []int64) map[int64]bool {
	seen := make(map[int64]bool, len(values))
	for _, v := range values {
		seen[v] = true
	}
	return seen
}

func seedFrom(n int64) SeedFunc {
	return func(*gorm.DB) (int64, error) { return n, nil }
}

// readThenWriteCounter reads the stored value and writes value+1 in separate
// statements, and holds every caller until all of them have read.
type readThenWriteCounter struct {
	reads sync.WaitGroup
}

func (c *readThenWriteCounter) Next(ctx context.Context, tx *gorm.DB, scope string, seed SeedFunc) (int64, error) {
	var current int64
	err := tx.WithContext(ctx).Model(&models.SequenceCounter{}).
		Where("scope = ?", scope).
		Select("COALESCE(MAX(value), 0)").Scan(&current).Error
	c.reads.Done()
	c.reads.Wait()
	if err != nil {
		return 0, err
	}
	next := current + 1
	err = tx.WithContext(ctx).Model(&models.SequenceCounter{}).
		Where("scope = ?", scope).
		UpdateColumn("value", next).Error
	return next, err
}

func TestDBCounter_ParallelCallersGetDistinctValues(t *testing.T) {
	db := testutil.NewConcurrentTestDB(t)
	const n = 16

	values := drawConcurrently(t, db, DBCounter{}, n, seedFrom(0))

	seen := distinct(values)
	assert.Len(t, seen, n, "values: %v", values)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestDrawConcurrently_DetectsReadThenWriteCounter(t *testing.T) {
	db := testutil.NewConcurrentTestDB(t)
	require.NoError(t, db.Create(&models.SequenceCounter{Scope: "load", Value: 0}).Error)
	const n = 8

	counter := &readThenWriteCounter{}
	counter.reads.Add(n)
	values := drawConcurrently(t, db, counter, n, seedFrom(0))

	assert.Less(t, len(distinct(values)), n, "a lost update must show up as repeated values: %v", values)
}

func TestRequestCreation_ConcurrentNumbersAreUnique(t *testing.T) {
	f := newFixtureOn(t, testutil.NewConcurrentTestDB(t))
	const n = 12

	start := make(chan struct{})
	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			req, err := f.requests.Create(f.ctx, f.supervisor, f.requestInput(item(fmt.Sprintf("bolt-%d", i), 1)))
			if err != nil {
				errs <- err
				return
			}
			numbers <- req.RequestNumber
		}(i)
	}
	close(start)
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}
	seen := map[string]bool{}
	for number := range numbers {
		assert.False(t, seen[number], "duplicate request number %s", number)
		seen[number] = true
	}
	assert.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("A%d", i)], "missing A%d", i)
	}
}

func TestCounterInstance_DefaultsToDatabase(t *testing.T) {
	SetCounter(nil)
	_, ok := GetCounter().(DBCounter)
	assert.True(t, ok)
}
