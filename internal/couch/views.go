package couch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/couchdir/couchdir/internal/directory"
	"github.com/go-kivik/kivik/v4"
)

// authViews are the map functions behind the directory's lookups. Both
// key off the doc_type marker; the email view skips empty emails so
// records without one never collide there.
var authViews = map[string]string{
	directory.ViewUsersByUsername: `function(doc) { if (doc.doc_type == "User") { emit(doc.username, null); } }`,
	directory.ViewUsersByEmail:    `function(doc) { if (doc.doc_type == "User" && doc.email) { emit(doc.email, null); } }`,
}

type designDoc struct {
	ID       string                `json:"_id"`
	Rev      string                `json:"_rev,omitempty"`
	Language string                `json:"language"`
	Views    map[string]designView `json:"views"`
}

type designView struct {
	Map string `json:"map"`
}

// EnsureViews writes the auth design document, updating it in place
// when it already exists.
func (c *Client) EnsureViews(ctx context.Context) error {
	docID := "_design/" + designDocName

	rev, err := c.db.GetRev(ctx, docID)
	if err != nil && kivik.HTTPStatus(err) != http.StatusNotFound {
		return fmt.Errorf("fetch design document: %w", err)
	}

	views := make(map[string]designView, len(authViews))
	for name, mapFn := range authViews {
		views[name] = designView{Map: mapFn}
	}

	doc := designDoc{
		ID:       docID,
		Rev:      rev,
		Language: "javascript",
		Views:    views,
	}
	if _, err := c.db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("write design document: %w", err)
	}
	return nil
}
