package couch

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/couchdir/couchdir/internal/directory"
	"github.com/couchdir/couchdir/types"
	"github.com/go-kivik/kivik/v4"
)

// designDocName holds the directory views.
const designDocName = "auth"

// Store implements directory.Store on a CouchDB database through the
// views in the auth design document.
type Store struct {
	db *kivik.DB
}

func (s *Store) GetFirstByView(ctx context.Context, view, key string) (*types.User, error) {
	rows := s.db.Query(ctx, designDocName, view, kivik.Params(map[string]interface{}{
		"key":          key,
		"include_docs": true,
		"limit":        1,
	}))
	defer rows.Close()

	if rows.Next() {
		var u types.User
		if err := rows.ScanDoc(&u); err != nil {
			return nil, fmt.Errorf("scan document from view %q: %w", view, err)
		}
		return &u, nil
	}
	if err := rows.Err(); err != nil {
		return nil, mapViewError(view, err)
	}
	return nil, directory.ErrNotFound
}

func (s *Store) AllByView(ctx context.Context, view string) iter.Seq2[*types.User, error] {
	return func(yield func(*types.User, error) bool) {
		rows := s.db.Query(ctx, designDocName, view, kivik.Params(map[string]interface{}{
			"include_docs": true,
		}))
		defer rows.Close()

		for rows.Next() {
			var u types.User
			if err := rows.ScanDoc(&u); err != nil {
				yield(nil, fmt.Errorf("scan document from view %q: %w", view, err))
				return
			}
			if !yield(&u, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, mapViewError(view, err))
		}
	}
}

func (s *Store) Put(ctx context.Context, docID string, u *types.User) (string, error) {
	rev, err := s.db.Put(ctx, docID, u)
	if err != nil {
		return "", err
	}
	return rev, nil
}

// mapViewError folds "view does not exist" into the provisioning
// sentinel; everything else stays an opaque store failure.
func mapViewError(view string, err error) error {
	if kivik.HTTPStatus(err) == http.StatusNotFound {
		return fmt.Errorf("view %q: %w", view, directory.ErrIndexNotProvisioned)
	}
	return fmt.Errorf("query view %q: %w", view, err)
}
