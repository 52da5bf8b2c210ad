package directory

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/couchdir/couchdir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndCheckPassword(t *testing.T) {
	u := types.NewUser("mickey")
	require.NoError(t, SetPassword(u, "secret"))

	assert.True(t, CheckPassword(u, "secret"))
	assert.False(t, CheckPassword(u, "wrong"))
	assert.True(t, HasUsablePassword(u))
}

func TestSetPasswordDescriptorShape(t *testing.T) {
	u := types.NewUser("mickey")
	require.NoError(t, SetPassword(u, "secret"))

	parts := strings.Split(u.Password, "$")
	require.Len(t, parts, 3)
	assert.Equal(t, "sha1", parts[0])
	assert.Len(t, parts[1], saltLength)
	assert.Len(t, parts[2], 40)
	assert.NotContains(t, u.Password, "secret")
}

func TestSetPasswordSaltsAreFresh(t *testing.T) {
	u1 := types.NewUser("a")
	u2 := types.NewUser("b")
	require.NoError(t, SetPassword(u1, "secret"))
	require.NoError(t, SetPassword(u2, "secret"))
	assert.NotEqual(t, u1.Password, u2.Password)
}

func TestUnusablePassword(t *testing.T) {
	u := types.NewUser("mickey")
	SetUnusablePassword(u)

	assert.Equal(t, UnusablePassword, u.Password)
	assert.False(t, HasUsablePassword(u))
	assert.False(t, CheckPassword(u, "secret"))
	assert.False(t, CheckPassword(u, UnusablePassword))
	assert.False(t, CheckPassword(u, ""))
}

func TestCheckPasswordMalformedDescriptor(t *testing.T) {
	u := types.NewUser("mickey")

	for _, stored := range []string{"", "plaintext", "sha1$missingdigest", "rot13$ab$cafe"} {
		u.Password = stored
		assert.False(t, CheckPassword(u, "plaintext"), "stored=%q", stored)
	}
}

func TestCheckPasswordLegacyMD5Descriptor(t *testing.T) {
	sum := md5.Sum([]byte("ab123" + "secret"))
	u := types.NewUser("mickey")
	u.Password = "md5$ab123$" + hex.EncodeToString(sum[:])

	assert.True(t, CheckPassword(u, "secret"))
	assert.False(t, CheckPassword(u, "wrong"))
}
