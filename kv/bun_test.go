package kv_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/slothworks/sloth/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newBunStore(t *testing.T) *kv.BunStore {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	db := bun.NewDB(sqldb, sqlitedialect.New())
	store := kv.NewBun(db)
	require.NoError(t, store.Init(context.Background()))

	return store
}

func TestBunStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newBunStore(t)
	key := kv.K("accounts", "a@b.co")

	entry, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, store.Set(ctx, key, []byte(`{"id":0,"email":"a@b.co"}`)))

	entry, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte(`{"id":0,"email":"a@b.co"}`), entry.Value)
	assert.Equal(t, int64(1), entry.Version)

	require.NoError(t, store.Set(ctx, key, []byte(`{"id":0}`)))

	entry, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.Version, "upsert must bump the version")
}

func TestBunStoreConditionalCommit(t *testing.T) {
	ctx := context.Background()
	store := newBunStore(t)
	meta := kv.K("meta")

	ok, err := kv.NewAtomic(store).
		Check(meta, 0).
		Set(meta, []byte(`{"latestAccId":-1}`)).
		Commit(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.NewAtomic(store).
		Check(meta, 0).
		Set(meta, []byte(`{"latestAccId":-1}`)).
		Commit(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// triple write conditioned on the current version
	entry, err := store.Get(ctx, meta)
	require.NoError(t, err)
	require.NotNil(t, entry)

	ok, err = kv.NewAtomic(store).
		Check(meta, entry.Version).
		Set(kv.K("accounts", "a@b.co"), []byte(`{"id":0}`)).
		Set(kv.K("accountsById", "0"), []byte(`"a@b.co"`)).
		Set(meta, []byte(`{"latestAccId":0}`)).
		Commit(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	index, err := store.Get(ctx, kv.K("accountsById", "0"))
	require.NoError(t, err)
	require.NotNil(t, index)
	assert.Equal(t, []byte(`"a@b.co"`), index.Value)
}
