package kv

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

// errCheckFailed aborts a Commit transaction without surfacing an error to
// the caller; Commit maps it to (false, nil).
var errCheckFailed = errors.New("kv: version check failed")

type kvRecord struct {
	bun.BaseModel `bun:"table:kv_entries,alias:kve"`

	Key     string `bun:"key,pk"`
	Value   []byte `bun:"value"`
	Version int64  `bun:"version,notnull"`
}

// BunStore persists entries in a single kv_entries table. Versions start at
// 1 and increment on every write, mirroring the managed store's
// versionstamps closely enough for the conditional-commit contract.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

// NewBun wraps a bun handle. Call Init before first use.
func NewBun(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// Init creates the backing table if it does not exist yet.
func (s *BunStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*kvRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *BunStore) Get(ctx context.Context, key Key) (*Entry, error) {
	record := new(kvRecord)

	err := s.db.NewSelect().
		Model(record).
		Where("kve.key = ?", key.String()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Entry{Value: record.Value, Version: record.Version}, nil
}

func (s *BunStore) Set(ctx context.Context, key Key, value []byte) error {
	return upsert(ctx, s.db, key, value)
}

func (s *BunStore) Commit(ctx context.Context, checks []Check, writes []Write) (bool, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, check := range checks {
			var version int64

			err := tx.NewSelect().
				Model((*kvRecord)(nil)).
				Column("version").
				Where("kve.key = ?", check.Key.String()).
				Scan(ctx, &version)
			if errors.Is(err, sql.ErrNoRows) {
				version = 0
			} else if err != nil {
				return err
			}

			if version != check.Version {
				return errCheckFailed
			}
		}

		for _, write := range writes {
			if err := upsert(ctx, tx, write.Key, write.Value); err != nil {
				return err
			}
		}

		return nil
	})

	if errors.Is(err, errCheckFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func upsert(ctx context.Context, db bun.IDB, key Key, value []byte) error {
	record := &kvRecord{Key: key.String(), Value: value, Version: 1}

	_, err := db.NewInsert().
		Model(record).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("version = kve.version + 1").
		Exec(ctx)
	return err
}
