package directory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/couchdir/couchdir/types"
)

// View names the directory queries. They live in the auth design
// document and are provisioned by the couch package.
const (
	ViewUsersByUsername = "users_by_username"
	ViewUsersByEmail    = "users_by_email"
)

// Store is the document-store seam the directory runs on.
//
// GetFirstByView returns the first document matching key in the named
// view, ErrNotFound when nothing matches, and ErrIndexNotProvisioned
// when the view itself does not exist. Any other error is an opaque
// store failure. AllByView iterates every document in the view; the
// returned sequence is restartable (each range starts a fresh query).
// Put writes the document under docID and returns the new revision.
type Store interface {
	GetFirstByView(ctx context.Context, view, key string) (*types.User, error)
	AllByView(ctx context.Context, view string) iter.Seq2[*types.User, error]
	Put(ctx context.Context, docID string, u *types.User) (string, error)
}

// Directory owns the user records: uniqueness-checked writes and
// visibility-filtered lookups over the view indexes.
type Directory struct {
	store Store
}

func New(store Store) *Directory {
	return &Directory{store: store}
}

// Save persists u after checking the uniqueness invariants.
//
// The username view is queried first; a match whose document id differs
// from u's own fails with ErrDuplicateUsername. The email view is
// checked the same way when the email is non-empty, failing with
// ErrDuplicateEmail. The check-then-write sequence is not atomic
// against concurrent writers: treat Save as best-effort-unique, and key
// external coordination on (field, value) where stronger guarantees are
// needed. Because the document id is the username itself, concurrent
// creates of the same username still collide on the store's revision
// check; only the email invariant is purely best-effort.
func (d *Directory) Save(ctx context.Context, u *types.User) error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}

	existing, err := d.store.GetFirstByView(ctx, ViewUsersByUsername, u.Username)
	switch {
	case err == nil:
		if u.DocID == "" || existing.DocID != u.DocID {
			return ErrDuplicateUsername
		}
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIndexNotProvisioned):
	default:
		return fmt.Errorf("check username %q: %w", u.Username, err)
	}

	if u.Email != "" {
		existing, err := d.store.GetFirstByView(ctx, ViewUsersByEmail, u.Email)
		switch {
		case err == nil:
			if u.DocID == "" || existing.DocID != u.DocID {
				return ErrDuplicateEmail
			}
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrIndexNotProvisioned):
		default:
			return fmt.Errorf("check email %q: %w", u.Email, err)
		}
	}

	rev, err := d.store.Put(ctx, u.Username, u)
	if err != nil {
		return fmt.Errorf("save user %q: %w", u.Username, err)
	}
	u.DocID = u.Username
	u.Rev = rev
	return nil
}

// GetByUsername returns the active record with that username. Inactive
// records exist but are not discoverable here; they, a missing record,
// and an unprovisioned index all come back as ErrNotFound.
func (d *Directory) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	return d.visible(d.store.GetFirstByView(ctx, ViewUsersByUsername, username))
}

// GetByEmail returns the active record with that email address, with
// the same visibility rule as GetByUsername.
func (d *Directory) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	if email == "" {
		return nil, ErrNotFound
	}
	return d.visible(d.store.GetFirstByView(ctx, ViewUsersByEmail, email))
}

// Lookup returns the record with that username regardless of the
// active flag. This is the identity lookup Save's invariant check and
// the migration upsert rely on; callers that want the soft-visibility
// rule use GetByUsername instead.
func (d *Directory) Lookup(ctx context.Context, username string) (*types.User, error) {
	u, err := d.store.GetFirstByView(ctx, ViewUsersByUsername, username)
	if err != nil {
		if errors.Is(err, ErrIndexNotProvisioned) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// ListAll returns a lazy, restartable sequence of every record in the
// username view, active or not. An unprovisioned index yields an empty
// sequence; any other store failure is yielded to the caller and ends
// the sequence.
func (d *Directory) ListAll(ctx context.Context) iter.Seq2[*types.User, error] {
	return func(yield func(*types.User, error) bool) {
		for u, err := range d.store.AllByView(ctx, ViewUsersByUsername) {
			if err != nil {
				if errors.Is(err, ErrIndexNotProvisioned) {
					return
				}
				yield(nil, err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
	}
}

// visible applies the soft-visibility rule shared by the lookups.
func (d *Directory) visible(u *types.User, err error) (*types.User, error) {
	if err != nil {
		if errors.Is(err, ErrIndexNotProvisioned) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrNotFound
	}
	return u, nil
}
