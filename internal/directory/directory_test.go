package directory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"testing"

	"github.com/couchdir/couchdir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

// fakeStore is an in-memory directory.Store with the same contract as
// the CouchDB adapter: documents keyed by id, view lookups by field.
type fakeStore struct {
	docs map[string]*types.User
	revs map[string]int

	// unprovisioned makes every view query report a missing index.
	unprovisioned bool
	// failWith makes every operation fail with an opaque store error.
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs: make(map[string]*types.User),
		revs: make(map[string]int),
	}
}

func cloneUser(u *types.User) *types.User {
	c := *u
	if u.Extra != nil {
		c.Extra = maps.Clone(u.Extra)
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (f *fakeStore) GetFirstByView(ctx context.Context, view, key string) (*types.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.unprovisioned {
		return nil, ErrIndexNotProvisioned
	}
	for _, id := range slices.Sorted(maps.Keys(f.docs)) {
		u := f.docs[id]
		switch view {
		case ViewUsersByUsername:
			if u.Username == key {
				return cloneUser(u), nil
			}
		case ViewUsersByEmail:
			if u.Email != "" && u.Email == key {
				return cloneUser(u), nil
			}
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) AllByView(ctx context.Context, view string) iter.Seq2[*types.User, error] {
	return func(yield func(*types.User, error) bool) {
		if f.failWith != nil {
			yield(nil, f.failWith)
			return
		}
		if f.unprovisioned {
			yield(nil, ErrIndexNotProvisioned)
			return
		}
		for _, id := range slices.Sorted(maps.Keys(f.docs)) {
			if !yield(cloneUser(f.docs[id]), nil) {
				return
			}
		}
	}
}

func (f *fakeStore) Put(ctx context.Context, docID string, u *types.User) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.revs[docID]++
	rev := fmt.Sprintf("%d-fake", f.revs[docID])
	stored := cloneUser(u)
	stored.DocID = docID
	stored.Rev = rev
	f.docs[docID] = stored
	return rev, nil
}

// --- tests ---

func TestSaveThenGetByUsername(t *testing.T) {
	store := newFakeStore()
	dir := New(store)
	ctx := context.Background()

	u := types.NewUser("frank")
	u.FirstName = "Frank"
	u.LastName = "Castle"
	u.Email = "user@host.com"
	require.NoError(t, SetPassword(u, "secret"))
	require.NoError(t, dir.Save(ctx, u))
	assert.Equal(t, "frank", u.DocID)
	assert.NotEmpty(t, u.Rev)

	got, err := dir.GetByUsername(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, u.Username, got.Username)
	assert.Equal(t, u.FirstName, got.FirstName)
	assert.Equal(t, u.LastName, got.LastName)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.Password, got.Password)
	assert.Equal(t, u.DateJoined, got.DateJoined)
	assert.True(t, got.IsActive)

	byEmail, err := dir.GetByEmail(ctx, "user@host.com")
	require.NoError(t, err)
	assert.Equal(t, "frank", byEmail.Username)
}

func TestSaveDuplicateUsername(t *testing.T) {
	store := newFakeStore()
	dir := New(store)
	ctx := context.Background()

	require.NoError(t, dir.Save(ctx, types.NewUser("frank")))

	err := dir.Save(ctx, types.NewUser("frank"))
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.Len(t, store.docs, 1)
}

func TestSaveDuplicateEmail(t *testing.T) {
	store := newFakeStore()
	dir := New(store)
	ctx := context.Background()

	u1 := types.NewUser("frank")
	u1.Email = "user@host.com"
	require.NoError(t, dir.Save(ctx, u1))

	u2 := types.NewUser("mark")
	u2.Email = "user@host.com"
	assert.ErrorIs(t, dir.Save(ctx, u2), ErrDuplicateEmail)
}

func TestSaveEmptyEmailsNeverConflict(t *testing.T) {
	store := newFakeStore()
	dir := New(store)
	ctx := context.Background()

	require.NoError(t, dir.Save(ctx, types.NewUser("frank")))
	require.NoError(t, dir.Save(ctx, types.NewUser("mark")))
	assert.Len(t, store.docs, 2)
}

func TestSaveUpdateDoesNotConflictWithItself(t *testing.T) {
	store := newFakeStore()
	dir := New(store)
	ctx := context.Background()

	u := types.NewUser("frank")
	u.Email = "user@host.com"
	require.NoError(t, dir.Save(ctx, u))

	loaded, err := dir.GetByEmail(ctx, "user@host.com")
	require.NoError(t, err)
	loaded.Email = "notme@otherhost.com"
	require.NoError(t, dir.Save(ctx, loaded))

	got, err := dir.GetByUsername(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, "notme@otherhost.com", got.Email)
	assert.Len(t, store.docs, 1)
}

func TestSaveRequiresUsername(t *testing.T) {
	dir := New(newFakeStore())
	assert.Error(t, dir.Save(context.Background(), &types.User{}))
}

func TestInactiveRecordsAreInvisibleToLookups(t *testing.T) {
	store := newFakeStore()
	dir := New(store)
	ctx := context.Background()

	u := types.NewUser("ghost")
	u.Email = "ghost@host.com"
	u.IsActive = false
	require.NoError(t, dir.Save(ctx, u))

	_, err := dir.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = dir.GetByEmail(ctx, "ghost@host.com")
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := dir.Lookup(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}

func TestSavePropagatesStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failWith = errors.New("store unavailable")
	dir := New(store)

	err := dir.Save(context.Background(), types.NewUser("frank"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateUsername)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
}

func TestSaveWithUnprovisionedIndexStillWrites(t *testing.T) {
	store := newFakeStore()
	store.unprovisioned = true
	dir := New(store)

	require.NoError(t, dir.Save(context.Background(), types.NewUser("frank")))
	assert.Len(t, store.docs, 1)
}

func TestListAllIsRestartable(t *testing.T) {
	store := newFakeStore()
	dir := New(store)
	ctx := context.Background()

	require.NoError(t, dir.Save(ctx, types.NewUser("frank")))
	require.NoError(t, dir.Save(ctx, types.NewUser("mark")))

	all := dir.ListAll(ctx)
	for range 2 {
		var names []string
		for u, err := range all {
			require.NoError(t, err)
			names = append(names, u.Username)
		}
		assert.Equal(t, []string{"frank", "mark"}, names)
	}
}

func TestListAllUnprovisionedIndexIsEmpty(t *testing.T) {
	store := newFakeStore()
	store.unprovisioned = true
	dir := New(store)

	count := 0
	for _, err := range dir.ListAll(context.Background()) {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count)
}

func TestLookupMissingIsNotFound(t *testing.T) {
	dir := New(newFakeStore())
	_, err := dir.Lookup(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
