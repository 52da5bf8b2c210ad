package migration

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSourceCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM auth_user")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := NewPostgresSource(db).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	joined := time.Date(2009, 5, 1, 12, 0, 0, 0, time.UTC)
	lastLogin := time.Date(2010, 1, 2, 3, 4, 5, 0, time.UTC)

	columns := []string{
		"id", "username", "first_name", "last_name", "email", "password",
		"is_staff", "is_active", "is_superuser", "last_login", "date_joined",
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, first_name, last_name, email, password, is_staff, is_active, is_superuser, last_login, date_joined FROM auth_user ORDER BY id")).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, "alice", "Alice", "A", "a@x.com", "sha1$ab$cd", false, true, false, lastLogin, joined).
			AddRow(2, "bob", "", "", "", "!", true, false, true, nil, joined))

	var users []LegacyUser
	for u, err := range NewPostgresSource(db).Users(context.Background()) {
		require.NoError(t, err)
		users = append(users, u)
	}

	require.Len(t, users, 2)
	assert.Equal(t, int64(1), users[0].ID)
	assert.Equal(t, "alice", users[0].Username)
	require.NotNil(t, users[0].LastLogin)
	assert.Equal(t, lastLogin, *users[0].LastLogin)

	assert.Equal(t, "bob", users[1].Username)
	assert.True(t, users[1].IsStaff)
	assert.False(t, users[1].IsActive)
	assert.Nil(t, users[1].LastLogin)
	assert.Equal(t, joined, users[1].DateJoined)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProfilesFetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	profiles, err := PostgresProfiles(db, "user_profile")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM user_profile WHERE user_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "age", "bio"}).
			AddRow(int64(7), int64(30), []byte("hello")))

	got, err := profiles(context.Background(), LegacyUser{ID: 7, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got["user_id"])
	assert.Equal(t, int64(30), got["age"])
	assert.Equal(t, "hello", got["bio"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProfilesMissingRowContributesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	profiles, err := PostgresProfiles(db, "user_profile")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM user_profile WHERE user_id = $1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "age"}))

	got, err := profiles(context.Background(), LegacyUser{ID: 8})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostgresProfilesRejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = PostgresProfiles(db, "user_profile; DROP TABLE auth_user")
	assert.Error(t, err)
}
