package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/kendall-kelly/procurement-api/testutil"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRedisCounter(t *testing.T) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCounter(client), server
}

func TestRedisCounter_SeedsOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	counter, server := newRedisCounter(t)
	ctx := context.Background()

	seeded := 0
	seed := func(*gorm.DB) (int64, error) {
		seeded++
		return 41, nil
	}

	first, err := counter.Next(ctx, db, scopePurchaseOrder, seed)
	require.NoError(t, err)
	second, err := counter.Next(ctx, db, scopePurchaseOrder, seed)
	require.NoError(t, err)

	assert.EqualValues(t, 42, first)
	assert.EqualValues(t, 43, second)
	assert.Equal(t, 1, seeded)

	stored, err := server.Get("procurement:seq:" + scopePurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "43", stored)
}

func TestRedisCounter_ContinuesFromExistingRequests(t *testing.T) {
	f := newFixture(t)
	f.createRequest(item("cement", 1))
	f.createRequest(item("rebar", 2))

	counter, _ := newRedisCounter(t)
	number, seq, err := NewSequenceAllocator(counter).NextRequestNumber(f.ctx, f.db, f.supervisor.ID)
	require.NoError(t, err)
	assert.Equal(t, "A3", number)
	assert.Equal(t, 3, seq)
}

func TestRedisCounter_PrefixContinuesAfterAssignedSupervisors(t *testing.T) {
	db := testutil.NewTestDB(t)
	counter, _ := newRedisCounter(t)
	alloc := NewSequenceAllocator(counter)
	ctx := context.Background()

	first := testutil.CreateUser(t, db, "sam", workflow.RoleSupervisor)
	_, err := NewSequenceAllocator(DBCounter{}).AssignSupervisorPrefix(ctx, db, first.ID)
	require.NoError(t, err)

	second := testutil.CreateUser(t, db, "sue", workflow.RoleSupervisor)
	prefix, err := alloc.AssignSupervisorPrefix(ctx, db, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", prefix)
}

func TestRedisCounter_ParallelCallersGetDistinctValues(t *testing.T) {
	db := testutil.NewTestDB(t)
	counter, _ := newRedisCounter(t)
	const n = 32

	// Every caller may find the key missing and try to seed it
	values := drawConcurrently(t, db, counter, n, seedFrom(100))

	seen := distinct(values)
	assert.Len(t, seen, n, "values: %v", values)
	for i := int64(101); i <= 100+n; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestRedisCounter_RolledBackTransactionSkipsButNeverRepeats(t *testing.T) {
	db := testutil.NewTestDB(t)
	counter, _ := newRedisCounter(t)
	alloc := NewSequenceAllocator(counter)
	ctx := context.Background()
	sam := testutil.CreateUser(t, db, "sam", workflow.RoleSupervisor)

	number, _, err := alloc.NextRequestNumber(ctx, db, sam.ID)
	require.NoError(t, err)
	assert.Equal(t, "A1", number)

	failed := fmt.Errorf("create failed")
	var lost string
	err = db.Transaction(func(tx *gorm.DB) error {
		lost, _, err = alloc.NextRequestNumber(ctx, tx, sam.ID)
		require.NoError(t, err)
		return failed
	})
	require.ErrorIs(t, err, failed)
	assert.Equal(t, "A2", lost)

	number, seq, err := alloc.NextRequestNumber(ctx, db, sam.ID)
	require.NoError(t, err)
	assert.Equal(t, "A3", number)
	assert.Equal(t, 3, seq)
}

func TestRedisCounter_Unavailable(t *testing.T) {
	db := testutil.NewTestDB(t)
	counter, server := newRedisCounter(t)
	server.Close()

	_, err := counter.Next(context.Background(), db, scopePurchaseOrder, seedFrom(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), scopePurchaseOrder)
}
