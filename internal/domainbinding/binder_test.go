package domainbinding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

func Test_Slugify(t *testing.T) {
	testCases := []struct {
		seed    string
		want    string
		wantErr string
	}{
		{seed: "Greenwood", want: "greenwood"},
		{seed: "  St. Mary's  High School ", want: "st-mary-s-high-school"},
		{seed: "Écola Número 5", want: "cola-n-mero-5"},
		{seed: "--", wantErr: ErrInvalidSeed.Error()},
		{seed: strings.Repeat("ab-", 30), want: strings.TrimRight(strings.Repeat("ab-", 30)[:MaxSlugLength], "-")},
	}
	for _, tc := range testCases {
		t.Run(tc.seed, func(t *testing.T) {
			got, err := Slugify(tc.seed)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, len(got), MaxSlugLength)
		})
	}
}

func Test_CandidateAndDatabaseName(t *testing.T) {
	assert.Equal(t, "greenwood", Candidate("greenwood", 0))
	assert.Equal(t, "greenwood-2", Candidate("greenwood", 1))
	assert.Equal(t, "greenwood-3", Candidate("greenwood", 2))
	assert.Equal(t, "school_green_wood_2", DatabaseNameFor("green-wood-2"))
}

func Test_NewBinder(t *testing.T) {
	_, err := NewBinder(nil, 1)
	require.EqualError(t, err, "store cannot be nil")

	_, err = NewBinder(newMemoryStore(), -1)
	require.EqualError(t, err, "maxRetries must not be negative, got -1")
}

func Test_Binder_ReserveDomain(t *testing.T) {
	ctx := context.Background()
	b, err := NewBinder(newMemoryStore(), DefaultMaxRetries)
	require.NoError(t, err)

	accepted, err := b.ReserveDomain(ctx, "greenwood", OwnerKey("inquiry", "1"))
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = b.ReserveDomain(ctx, "greenwood", OwnerKey("inquiry", "2"))
	require.NoError(t, err)
	assert.False(t, accepted)
}

func Test_Binder_Allocate(t *testing.T) {
	ctx := context.Background()

	t.Run("colliding proposals get the next suffix", func(t *testing.T) {
		b, err := NewBinder(newMemoryStore(), DefaultMaxRetries)
		require.NoError(t, err)

		first, err := b.Allocate(ctx, OwnerKey("inquiry", "1"), "greenwood")
		require.NoError(t, err)
		assert.Equal(t, Allocation{Domain: "greenwood", DatabaseName: "school_greenwood", Attempts: 1}, first)

		second, err := b.Allocate(ctx, OwnerKey("inquiry", "2"), "Greenwood")
		require.NoError(t, err)
		assert.Equal(t, Allocation{Domain: "greenwood-2", DatabaseName: "school_greenwood_2", Attempts: 2}, second)
	})

	t.Run("zero retries exhausts on the first collision", func(t *testing.T) {
		store := newMemoryStore()
		b, err := NewBinder(store, 0)
		require.NoError(t, err)

		_, err = b.Allocate(ctx, OwnerKey("inquiry", "1"), "greenwood")
		require.NoError(t, err)

		_, err = b.Allocate(ctx, OwnerKey("inquiry", "2"), "greenwood")
		var exhaustedErr *AllocationExhaustedError
		require.ErrorAs(t, err, &exhaustedErr)
		assert.Equal(t, 1, exhaustedErr.Attempts)
		assert.Equal(t, "greenwood", exhaustedErr.Seed)
		assert.Equal(t, 2, store.reserveCalls)
	})

	t.Run("the owner's held reservation is reused", func(t *testing.T) {
		store := newMemoryStore()
		b, err := NewBinder(store, DefaultMaxRetries)
		require.NoError(t, err)

		first, err := b.Allocate(ctx, OwnerKey("admin", "1"), "riverside")
		require.NoError(t, err)
		again, err := b.Allocate(ctx, OwnerKey("admin", "1"), "something else")
		require.NoError(t, err)

		assert.True(t, again.Reused)
		assert.Equal(t, first.Domain, again.Domain)
		assert.Equal(t, 1, store.reserveCalls)
	})

	t.Run("a released reservation is never handed out again", func(t *testing.T) {
		b, err := NewBinder(newMemoryStore(), DefaultMaxRetries)
		require.NoError(t, err)

		first, err := b.Allocate(ctx, OwnerKey("admin", "1"), "riverside")
		require.NoError(t, err)
		require.NoError(t, b.Release(ctx, first.Domain))

		retried, err := b.Allocate(ctx, OwnerKey("admin", "1"), "riverside")
		require.NoError(t, err)
		assert.False(t, retried.Reused)
		assert.Equal(t, "riverside-2", retried.Domain)
	})

	t.Run("concurrent allocations never share identifiers", func(t *testing.T) {
		b, err := NewBinder(newMemoryStore(), DefaultMaxRetries)
		require.NoError(t, err)

		const workers = 10
		results := make([]Allocation, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				alloc, allocErr := b.Allocate(ctx, OwnerKey("inquiry", fmt.Sprint(i)), "greenwood")
				assert.NoError(t, allocErr)
				results[i] = alloc
			}(i)
		}
		wg.Wait()

		domains := map[string]bool{}
		databaseNames := map[string]bool{}
		for _, r := range results {
			domains[r.Domain] = true
			databaseNames[r.DatabaseName] = true
		}
		assert.Len(t, domains, workers)
		assert.Len(t, databaseNames, workers)
	})
}

func Test_Binder_Retire(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	b, err := NewBinder(store, DefaultMaxRetries)
	require.NoError(t, err)

	held, err := b.Allocate(ctx, OwnerKey("admin", "1"), "riverside")
	require.NoError(t, err)
	require.NoError(t, b.Retire(ctx, held.Domain))
	assert.NotNil(t, store.byDomain[held.Domain].ReleasedAt)
	// retiring twice is fine once nothing is bound
	require.NoError(t, b.Retire(ctx, held.Domain))

	bound, err := b.Allocate(ctx, OwnerKey("admin", "2"), "oakwood")
	require.NoError(t, err)
	store.byDomain[bound.Domain].Bound = true
	err = b.Retire(ctx, bound.Domain)
	require.ErrorIs(t, err, data.ErrReservationInUse)
	assert.Nil(t, store.byDomain[bound.Domain].ReleasedAt)
}
