package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UserDocType marks user documents in the store; the directory views
// key off it.
const UserDocType = "User"

// User represents one account document in the directory.
//
// The username doubles as the document id, so identity and lookup key
// are the same value. A User is plain data until it is passed to
// Directory.Save; construction alone never persists anything.
type User struct {
	// DocID is the id of the stored document. It is empty on a freshly
	// constructed record and set after a load or a successful save.
	DocID string `json:"-"`

	// Rev is the document revision, managed by the store.
	Rev string `json:"-"`

	// Username is the unique login name and the document id.
	Username string `json:"username"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// Email is optional but globally unique when non-empty.
	Email string `json:"email"`

	// Password holds a hash descriptor of the form algorithm$salt$digest,
	// or the unusable-password sentinel. Never a raw password.
	Password string `json:"password"`

	IsStaff     bool `json:"is_staff"`
	IsActive    bool `json:"is_active"`
	IsSuperuser bool `json:"is_superuser"`

	// LastLogin is nil for accounts that never logged in.
	LastLogin *time.Time `json:"last_login"`

	DateJoined time.Time `json:"date_joined"`

	// Extra carries merged attributes outside the fixed schema. They are
	// persisted inline in the document body. Reserved keys (leading
	// underscore, doc_type, fixed field names) are dropped on marshal.
	Extra map[string]any `json:"-"`
}

// NewUser constructs an unsaved record with the directory defaults
// applied: active, not staff, not superuser, joined now (UTC).
func NewUser(username string) *User {
	return &User{
		Username:   username,
		IsActive:   true,
		DateJoined: time.Now().UTC(),
	}
}

// FullName returns first and last name joined by a space, trimmed.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) String() string {
	return u.Username
}

// fixedDocKeys are the document keys owned by the struct fields above.
var fixedDocKeys = map[string]bool{
	"username":     true,
	"first_name":   true,
	"last_name":    true,
	"email":        true,
	"password":     true,
	"is_staff":     true,
	"is_active":    true,
	"is_superuser": true,
	"last_login":   true,
	"date_joined":  true,
}

// ReservedDocKey reports whether key may never be set through the Extra
// bag: storage-internal keys, the type marker, and the fixed schema.
func ReservedDocKey(key string) bool {
	return strings.HasPrefix(key, "_") || key == "doc_type" || fixedDocKeys[key]
}

// MarshalJSON renders the full document body: the fixed fields, the
// doc_type marker, the revision when known, and the Extra bag inlined.
// The document id is intentionally omitted; the store supplies it.
func (u *User) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(fixedDocKeys)+len(u.Extra)+2)
	for key, value := range u.Extra {
		if ReservedDocKey(key) {
			continue
		}
		doc[key] = value
	}

	doc["doc_type"] = UserDocType
	doc["username"] = u.Username
	doc["first_name"] = u.FirstName
	doc["last_name"] = u.LastName
	doc["email"] = u.Email
	doc["password"] = u.Password
	doc["is_staff"] = u.IsStaff
	doc["is_active"] = u.IsActive
	doc["is_superuser"] = u.IsSuperuser
	doc["last_login"] = u.LastLogin
	doc["date_joined"] = u.DateJoined
	if u.Rev != "" {
		doc["_rev"] = u.Rev
	}

	return json.Marshal(doc)
}

// UnmarshalJSON splits a document body back into the fixed fields and
// the Extra bag. Unknown keys survive a load-modify-save cycle.
func (u *User) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	scan := func(key string, dest any) error {
		raw, ok := doc[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("user document field %q: %w", key, err)
		}
		return nil
	}

	if err := scan("_id", &u.DocID); err != nil {
		return err
	}
	if err := scan("_rev", &u.Rev); err != nil {
		return err
	}
	if err := scan("username", &u.Username); err != nil {
		return err
	}
	if err := scan("first_name", &u.FirstName); err != nil {
		return err
	}
	if err := scan("last_name", &u.LastName); err != nil {
		return err
	}
	if err := scan("email", &u.Email); err != nil {
		return err
	}
	if err := scan("password", &u.Password); err != nil {
		return err
	}
	if err := scan("is_staff", &u.IsStaff); err != nil {
		return err
	}
	if err := scan("is_active", &u.IsActive); err != nil {
		return err
	}
	if err := scan("is_superuser", &u.IsSuperuser); err != nil {
		return err
	}
	if err := scan("last_login", &u.LastLogin); err != nil {
		return err
	}
	if err := scan("date_joined", &u.DateJoined); err != nil {
		return err
	}

	u.Extra = nil
	for key, raw := range doc {
		if ReservedDocKey(key) {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("user document field %q: %w", key, err)
		}
		if u.Extra == nil {
			u.Extra = make(map[string]any)
		}
		u.Extra[key] = value
	}
	return nil
}

// SetExtra stores an out-of-schema attribute, rejecting reserved keys.
func (u *User) SetExtra(key string, value any) error {
	if ReservedDocKey(key) {
		return fmt.Errorf("reserved document key %q", key)
	}
	if u.Extra == nil {
		u.Extra = make(map[string]any)
	}
	u.Extra[key] = value
	return nil
}
