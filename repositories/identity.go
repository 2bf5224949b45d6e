package repositories

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"chat-relay/domain"
	"chat-relay/errors"
)

const identityPrefix = "user:"

type IIdentityRepository interface {
	Create(handle, secret string) error
	Get(handle string) (domain.Identity, error)
	Exists(handle string) (bool, error)
	Count() (int, error)
}

// IdentityRepository is the identity directory. It runs on an in-memory
// Badger store: handle uniqueness is checked and the record written inside
// one transaction, and nothing survives a process restart.
type IdentityRepository struct {
	db *badger.DB
}

func NewIdentityRepository(db *badger.DB) IIdentityRepository {
	return &IdentityRepository{db: db}
}

type identityRecord struct {
	Handle    string `cbor:"handle"`
	Secret    string `cbor:"secret"`
	CreatedAt int64  `cbor:"created_at"`
}

// Create stores a new identity. It fails with ErrUserExists when the handle
// is already present; the first credential is retained.
func (r *IdentityRepository) Create(handle, secret string) error {
	data, err := cbor.Marshal(identityRecord{
		Handle:    handle,
		Secret:    secret,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(identityPrefix + handle)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
}

func (r *IdentityRepository) Get(handle string) (domain.Identity, error) {
	var rec identityRecord

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(identityPrefix + handle))
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return domain.Identity{}, err
	}

	return domain.Identity{
		Handle:    rec.Handle,
		Secret:    rec.Secret,
		CreatedAt: time.Unix(rec.CreatedAt, 0).UTC(),
	}, nil
}

func (r *IdentityRepository) Exists(handle string) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(identityPrefix + handle))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of registered identities, for the health snapshot.
func (r *IdentityRepository) Count() (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(identityPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
