package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserDefaults(t *testing.T) {
	before := time.Now().UTC()
	u := NewUser("frank")

	assert.Equal(t, "frank", u.Username)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)
	assert.False(t, u.IsSuperuser)
	assert.Nil(t, u.LastLogin)
	assert.False(t, u.DateJoined.Before(before))
	assert.Empty(t, u.DocID, "construction must not look persisted")
}

func TestUserDocumentRoundTrip(t *testing.T) {
	u := NewUser("frank")
	u.FirstName = "Frank"
	u.Email = "user@host.com"
	u.Password = "sha1$ab123$cafe"
	u.Rev = "3-abc"
	require.NoError(t, u.SetExtra("age", 30))

	body, err := json.Marshal(u)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "User", doc["doc_type"])
	assert.Equal(t, "3-abc", doc["_rev"])
	assert.Equal(t, float64(30), doc["age"])
	assert.NotContains(t, doc, "_id")

	var got User
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, u.Username, got.Username)
	assert.Equal(t, u.FirstName, got.FirstName)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.Password, got.Password)
	assert.Equal(t, "3-abc", got.Rev)
	assert.Equal(t, float64(30), got.Extra["age"])
}

func TestUnmarshalCapturesStorageIdentity(t *testing.T) {
	body := []byte(`{
		"_id": "frank",
		"_rev": "1-xyz",
		"doc_type": "User",
		"username": "frank",
		"is_active": true,
		"date_joined": "2009-05-01T12:00:00Z",
		"nickname": "al"
	}`)

	var u User
	require.NoError(t, json.Unmarshal(body, &u))
	assert.Equal(t, "frank", u.DocID)
	assert.Equal(t, "1-xyz", u.Rev)
	assert.Equal(t, "al", u.Extra["nickname"])
	assert.NotContains(t, u.Extra, "doc_type")
}

func TestExtraCannotShadowReservedKeys(t *testing.T) {
	u := NewUser("frank")
	u.Extra = map[string]any{
		"username": "evil",
		"_rev":     "9-evil",
		"doc_type": "Admin",
		"age":      30,
	}

	body, err := json.Marshal(u)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "frank", doc["username"])
	assert.Equal(t, "User", doc["doc_type"])
	assert.NotContains(t, doc, "_rev")
	assert.Equal(t, float64(30), doc["age"])
}

func TestSetExtraRejectsReservedKeys(t *testing.T) {
	u := NewUser("frank")
	assert.Error(t, u.SetExtra("_state", 1))
	assert.Error(t, u.SetExtra("password", "x"))
	assert.Error(t, u.SetExtra("doc_type", "x"))
	assert.NoError(t, u.SetExtra("age", 30))
}

func TestFullName(t *testing.T) {
	u := NewUser("frank")
	assert.Empty(t, u.FullName())

	u.FirstName = "Frank"
	assert.Equal(t, "Frank", u.FullName())

	u.LastName = "Castle"
	assert.Equal(t, "Frank Castle", u.FullName())
}
