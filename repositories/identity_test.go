package repositories

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Create_And_Get_Identity(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(newTestDB(t))

	// When an identity is created
	err := repository.Create("alice", "s3cret")
	req.NoError(err)

	// Then it is retrievable with its credential
	identity, err := repository.Get("alice")
	req.NoError(err)
	req.Equal("alice", identity.Handle)
	req.Equal("s3cret", identity.Secret)
	req.False(identity.CreatedAt.IsZero())
}

func Test_Create_Duplicate_Handle(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(newTestDB(t))

	req.NoError(repository.Create("alice", "first"))

	// When the same handle registers again
	err := repository.Create("alice", "second")

	// Then the first credential is retained
	req.ErrorIs(err, errors.ErrUserExists)
	identity, err := repository.Get("alice")
	req.NoError(err)
	req.Equal("first", identity.Secret)
}

func Test_Get_Unknown_Handle(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(newTestDB(t))

	_, err := repository.Get("ghost")

	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_Exists_And_Count(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(newTestDB(t))

	ok, err := repository.Exists("alice")
	req.NoError(err)
	req.False(ok)

	req.NoError(repository.Create("alice", "a"))
	req.NoError(repository.Create("bob", "b"))

	ok, err = repository.Exists("alice")
	req.NoError(err)
	req.True(ok)

	count, err := repository.Count()
	req.NoError(err)
	req.Equal(2, count)
}
