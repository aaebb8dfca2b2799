package sloth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/slothworks/sloth"
	"github.com/slothworks/sloth/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccounts(t *testing.T) sloth.Accounts {
	t.Helper()
	accounts := sloth.NewAccounts(kv.NewMemory())
	require.NoError(t, accounts.EnsureMetaInitialized(context.Background()))
	return accounts
}

func TestEnsureMetaInitializedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	accounts := sloth.NewAccounts(kv.NewMemory())

	require.NoError(t, accounts.EnsureMetaInitialized(ctx))
	require.NoError(t, accounts.EnsureMetaInitialized(ctx))

	id, err := accounts.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t)

	first := &sloth.Account{Email: "first@example.com", CreatedAt: time.Now().UnixMilli()}
	require.NoError(t, accounts.CreateOrUpdate(ctx, first))
	assert.Equal(t, int64(0), first.ID)

	second := &sloth.Account{Email: "second@example.com", CreatedAt: time.Now().UnixMilli()}
	require.NoError(t, accounts.CreateOrUpdate(ctx, second))
	assert.Equal(t, int64(1), second.ID)

	next, err := accounts.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestGetByIDFollowsTheIndex(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t)

	account := &sloth.Account{Email: "indexed@example.com", DisplayName: "Indexed"}
	require.NoError(t, accounts.CreateOrUpdate(ctx, account))

	found, err := accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "indexed@example.com", found.Email)
	assert.Equal(t, "Indexed", found.DisplayName)
}

func TestLookupsReturnNilForUnknownRecords(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t)

	byEmail, err := accounts.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, byEmail)

	byID, err := accounts.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, byID)
}

func TestUpdateKeepsTheAssignedID(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t)

	account := &sloth.Account{Email: "keep@example.com"}
	require.NoError(t, accounts.CreateOrUpdate(ctx, account))
	assigned := account.ID

	account.LoginToken = "signed-login-token"
	require.NoError(t, accounts.CreateOrUpdate(ctx, account))

	found, err := accounts.GetByEmail(ctx, "keep@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, assigned, found.ID)
	assert.Equal(t, "signed-login-token", found.LoginToken)

	next, err := accounts.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, assigned+1, next)
}

func TestConcurrentCreatesGetUniqueIDs(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t)

	const workers = 8

	var wg sync.WaitGroup
	ids := make([]int64, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account := &sloth.Account{Email: fmt.Sprintf("user%d@example.com", i)}
			errs[i] = accounts.CreateOrUpdate(ctx, account)
			ids[i] = account.ID
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			// contention after the retry budget is an accepted outcome,
			// never a duplicate id
			assert.ErrorIs(t, errs[i], sloth.ErrCreateContention)
			continue
		}
		assert.False(t, seen[ids[i]], "id %d assigned twice", ids[i])
		seen[ids[i]] = true
	}
	assert.NotEmpty(t, seen)
}

func TestStoreFailuresSurfaceAsErrors(t *testing.T) {
	ctx := context.Background()
	accounts := sloth.NewAccounts(failingStore{})

	_, err := accounts.GetByEmail(ctx, "a@b.co")
	assert.Error(t, err)

	_, err = accounts.NextID(ctx)
	assert.Error(t, err)

	err = accounts.CreateOrUpdate(ctx, &sloth.Account{Email: "a@b.co"})
	assert.Error(t, err)
}
