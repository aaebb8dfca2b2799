package sloth

import (
	"context"
	"encoding/json"
	"strconv"

	goerrors "github.com/goliatone/go-errors"
	"github.com/slothworks/sloth/kv"
)

// createAttempts bounds the optimistic retry loop on the meta counter.
const createAttempts = 5

var metaKey = kv.K("meta")

func accountKey(email string) kv.Key {
	return kv.K("accounts", email)
}

func accountIDKey(id int64) kv.Key {
	return kv.K("accountsById", strconv.FormatInt(id, 10))
}

// Accounts is the account store. Lookups return (nil, nil) for unknown
// emails or ids; errors are store faults only.
type Accounts interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)

	// NextID returns latestAccId + 1 without mutating the counter; the
	// increment happens inside CreateOrUpdate's atomic commit.
	NextID(ctx context.Context) (int64, error)

	// EnsureMetaInitialized idempotently creates the counter record at -1.
	// Concurrent first-time initializers lose the conditional commit
	// harmlessly.
	EnsureMetaInitialized(ctx context.Context) error

	// CreateOrUpdate persists the record. A record whose email is unknown
	// gets an id assigned and the primary record, the id -> email index,
	// and the incremented counter written as one all-or-nothing commit.
	// Known emails get a plain last-write-wins upsert.
	CreateOrUpdate(ctx context.Context, account *Account) error
}

type kvAccounts struct {
	store kv.Store
}

var _ Accounts = (*kvAccounts)(nil)

// NewAccounts returns an Accounts repository over the given store.
func NewAccounts(store kv.Store) Accounts {
	return &kvAccounts{store: store}
}

func (r *kvAccounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	entry, err := r.store.Get(ctx, accountKey(email))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "store get failed for account")
	}
	if entry == nil {
		return nil, nil
	}

	account := new(Account)
	if err := json.Unmarshal(entry.Value, account); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "corrupt account record")
	}

	return account, nil
}

func (r *kvAccounts) GetByID(ctx context.Context, id int64) (*Account, error) {
	entry, err := r.store.Get(ctx, accountIDKey(id))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "store get failed for account index")
	}
	if entry == nil {
		return nil, nil
	}

	var email string
	if err := json.Unmarshal(entry.Value, &email); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "corrupt account index record")
	}

	return r.GetByEmail(ctx, email)
}

func (r *kvAccounts) NextID(ctx context.Context) (int64, error) {
	meta, _, err := r.getMeta(ctx)
	if err != nil {
		return 0, err
	}
	return meta.LatestAccID + 1, nil
}

func (r *kvAccounts) EnsureMetaInitialized(ctx context.Context) error {
	value, err := json.Marshal(MetaData{LatestAccID: -1})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "encode meta record")
	}

	// Checking against version 0 means "only if absent"; a lost race is
	// the success case for everyone involved.
	_, err = kv.NewAtomic(r.store).
		Check(metaKey, 0).
		Set(metaKey, value).
		Commit(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "store commit failed for meta init")
	}

	return nil
}

func (r *kvAccounts) CreateOrUpdate(ctx context.Context, account *Account) error {
	existing, err := r.GetByEmail(ctx, account.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return r.update(ctx, account)
	}
	return r.create(ctx, account)
}

func (r *kvAccounts) update(ctx context.Context, account *Account) error {
	value, err := json.Marshal(account)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "encode account record")
	}

	if err := r.store.Set(ctx, accountKey(account.Email), value); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "store set failed for account")
	}

	return nil
}

func (r *kvAccounts) create(ctx context.Context, account *Account) error {
	for attempt := 0; attempt < createAttempts; attempt++ {
		meta, version, err := r.getMeta(ctx)
		if err != nil {
			return err
		}

		account.ID = meta.LatestAccID + 1
		meta.LatestAccID = account.ID

		accountValue, err := json.Marshal(account)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "encode account record")
		}
		indexValue, err := json.Marshal(account.Email)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "encode account index record")
		}
		metaValue, err := json.Marshal(meta)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "encode meta record")
		}

		ok, err := kv.NewAtomic(r.store).
			Check(metaKey, version).
			Set(accountKey(account.Email), accountValue).
			Set(accountIDKey(account.ID), indexValue).
			Set(metaKey, metaValue).
			Commit(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "store commit failed for account create")
		}
		if ok {
			return nil
		}
		// another creator won the counter; re-read and take the next id
	}

	return ErrCreateContention
}

func (r *kvAccounts) getMeta(ctx context.Context) (MetaData, int64, error) {
	entry, err := r.store.Get(ctx, metaKey)
	if err != nil {
		return MetaData{}, 0, goerrors.Wrap(err, goerrors.CategoryOperation, "store get failed for meta")
	}
	if entry == nil {
		return MetaData{}, 0, goerrors.New("meta record not initialized", goerrors.CategoryInternal)
	}

	var meta MetaData
	if err := json.Unmarshal(entry.Value, &meta); err != nil {
		return MetaData{}, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "corrupt meta record")
	}

	return meta, entry.Version, nil
}
